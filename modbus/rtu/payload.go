// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
)

// CoilWrite is the echo of a single coil write.
type CoilWrite struct {
	Address uint16
	State   bool
}

// RegisterWrite is the echo of a single register write.
type RegisterWrite struct {
	Address uint16
	Value   uint16
}

// MultipleWrite is the echo of a multiple coil or register write. The
// response only carries the count, not the values.
type MultipleWrite struct {
	Address uint16
	Count   uint16
}

// DecodeBits returns one value per bit of a read coils or read discrete
// inputs response, LSB first within each byte. The result always covers
// whole bytes; callers trim it to the requested quantity.
func DecodeBits(f *Frame) ([]bool, error) {
	if err := expectFunction(f, modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs); err != nil {
		return nil, err
	}
	data, err := readData(f)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, len(data)*8), nil
}

// DecodeRegisters returns the big-endian register values of a read holding
// or read input registers response.
func DecodeRegisters(f *Frame) ([]uint16, error) {
	if err := expectFunction(f, modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters); err != nil {
		return nil, err
	}
	data, err := readData(f)
	if err != nil {
		return nil, err
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("modbus: register data size '%v' is not even", len(data))
	}
	values := make([]uint16, len(data)/2)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return values, nil
}

// DecodeCoilWrite interprets a write single coil echo. State is true iff the
// value field is 0xFF00.
func DecodeCoilWrite(f *Frame) (CoilWrite, error) {
	address, value, err := writeEcho(f, modbus.FuncCodeWriteSingleCoil)
	if err != nil {
		return CoilWrite{}, err
	}
	return CoilWrite{Address: address, State: value == modbus.CoilOn}, nil
}

// DecodeRegisterWrite interprets a write single register echo.
func DecodeRegisterWrite(f *Frame) (RegisterWrite, error) {
	address, value, err := writeEcho(f, modbus.FuncCodeWriteSingleRegister)
	if err != nil {
		return RegisterWrite{}, err
	}
	return RegisterWrite{Address: address, Value: value}, nil
}

// DecodeMultipleWrite interprets a write multiple coils or registers echo.
func DecodeMultipleWrite(f *Frame) (MultipleWrite, error) {
	address, count, err := writeEcho(f, modbus.FuncCodeWriteMultipleCoils, modbus.FuncCodeWriteMultipleRegisters)
	if err != nil {
		return MultipleWrite{}, err
	}
	return MultipleWrite{Address: address, Count: count}, nil
}

// DecodeException returns the exception carried by an exception response,
// or nil if f is not one.
func DecodeException(f *Frame) *modbus.ExceptionError {
	if !f.IsException() || len(f.Payload) < readHeaderSize {
		return nil
	}
	return &modbus.ExceptionError{
		FunctionCode: f.FunctionCode &^ modbus.FuncCodeException,
		Code:         f.Payload[2],
	}
}

func expectFunction(f *Frame, codes ...byte) error {
	for _, code := range codes {
		if f.FunctionCode == code {
			return nil
		}
	}
	return fmt.Errorf("modbus: response function code '%v' does not match expected '%v'", f.FunctionCode, codes)
}

// readData returns the data bytes of a read response, after address,
// function code and byte count.
func readData(f *Frame) ([]byte, error) {
	if len(f.Payload) < readHeaderSize {
		return nil, fmt.Errorf("modbus: response length '%v' does not meet minimum '%v'", f.Length, readHeaderSize+crcSize)
	}
	count := int(f.Payload[2])
	data := f.Payload[readHeaderSize:]
	if len(data) != count {
		return nil, fmt.Errorf("modbus: response data size '%v' does not match count '%v'", len(data), count)
	}
	return data, nil
}

// writeEcho returns the address and value fields of a write response.
func writeEcho(f *Frame, codes ...byte) (address, value uint16, err error) {
	if err = expectFunction(f, codes...); err != nil {
		return
	}
	data := f.Data()
	if len(data) != 4 {
		err = fmt.Errorf("modbus: response data size '%v' does not match expected '%v'", len(data), 4)
		return
	}
	address = binary.BigEndian.Uint16(data)
	value = binary.BigEndian.Uint16(data[2:])
	return
}
