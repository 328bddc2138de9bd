// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
)

// Request is one master operation addressed to a unit.
//
// Quantity is the coil or register count of reads and multiple writes.
// Value is the raw value field of single writes (0xFF00/0x0000 for coils).
// Coils and Registers carry the values of multiple writes.
type Request struct {
	SlaveID      byte
	FunctionCode byte
	Address      uint16
	Quantity     uint16
	Value        uint16
	Coils        []bool
	Registers    []uint16
}

func NewReadCoils(slaveID byte, address, quantity uint16) *Request {
	return &Request{SlaveID: slaveID, FunctionCode: modbus.FuncCodeReadCoils, Address: address, Quantity: quantity}
}

func NewReadDiscreteInputs(slaveID byte, address, quantity uint16) *Request {
	return &Request{SlaveID: slaveID, FunctionCode: modbus.FuncCodeReadDiscreteInputs, Address: address, Quantity: quantity}
}

func NewReadHoldingRegisters(slaveID byte, address, quantity uint16) *Request {
	return &Request{SlaveID: slaveID, FunctionCode: modbus.FuncCodeReadHoldingRegisters, Address: address, Quantity: quantity}
}

func NewReadInputRegisters(slaveID byte, address, quantity uint16) *Request {
	return &Request{SlaveID: slaveID, FunctionCode: modbus.FuncCodeReadInputRegisters, Address: address, Quantity: quantity}
}

func NewWriteSingleCoil(slaveID byte, address uint16, state bool) *Request {
	value := modbus.CoilOff
	if state {
		value = modbus.CoilOn
	}
	return &Request{SlaveID: slaveID, FunctionCode: modbus.FuncCodeWriteSingleCoil, Address: address, Value: value}
}

func NewWriteSingleRegister(slaveID byte, address, value uint16) *Request {
	return &Request{SlaveID: slaveID, FunctionCode: modbus.FuncCodeWriteSingleRegister, Address: address, Value: value}
}

func NewWriteMultipleCoils(slaveID byte, address uint16, values []bool) *Request {
	return &Request{
		SlaveID:      slaveID,
		FunctionCode: modbus.FuncCodeWriteMultipleCoils,
		Address:      address,
		Quantity:     uint16(len(values)),
		Coils:        values,
	}
}

func NewWriteMultipleRegisters(slaveID byte, address uint16, values []uint16) *Request {
	return &Request{
		SlaveID:      slaveID,
		FunctionCode: modbus.FuncCodeWriteMultipleRegisters,
		Address:      address,
		Quantity:     uint16(len(values)),
		Registers:    values,
	}
}

// Frame encodes the request into a frame.
// Quantities outside the protocol limits are encoded as given; only a byte
// count that does not fit its one-byte field is rejected.
func (r *Request) Frame() (*Frame, error) {
	var data []byte
	switch r.FunctionCode {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters:
		data = dataBlock(r.Address, r.Quantity)
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		data = dataBlock(r.Address, r.Value)
	case modbus.FuncCodeWriteMultipleCoils:
		packed := packBits(r.Coils)
		if len(packed) > 0xFF {
			return nil, fmt.Errorf("modbus: coil byte count '%v' must not be bigger than '%v'", len(packed), 0xFF)
		}
		data = dataBlockSuffix(packed, r.Address, r.Quantity)
	case modbus.FuncCodeWriteMultipleRegisters:
		if len(r.Registers)*2 > 0xFF {
			return nil, fmt.Errorf("modbus: register byte count '%v' must not be bigger than '%v'", len(r.Registers)*2, 0xFF)
		}
		values := make([]byte, len(r.Registers)*2)
		for i, v := range r.Registers {
			binary.BigEndian.PutUint16(values[i*2:], v)
		}
		data = dataBlockSuffix(values, r.Address, r.Quantity)
	default:
		return nil, &modbus.UnsupportedFunctionError{FunctionCode: r.FunctionCode}
	}
	return NewFrame(r.SlaveID, r.FunctionCode, data), nil
}

// Encode returns the wire encoding of the request.
func (r *Request) Encode() ([]byte, error) {
	f, err := r.Frame()
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// DecodeRequest extracts the request frame at the start of buf and returns it
// with the number of bytes it occupies. It follows the same contract as
// DecodeResponse.
func DecodeRequest(buf []byte) (*Request, int, error) {
	if len(buf) < 2 {
		return nil, 0, modbus.ErrInsufficientData
	}
	length, err := CalculateRequestLength(buf[1], buf)
	if err != nil {
		return nil, 0, err
	}
	if len(buf) < length {
		return nil, 0, modbus.ErrInsufficientData
	}
	f, n, err := decodeFrame(buf[:length])
	if err != nil {
		return nil, n, err
	}

	data := f.Data()
	req := &Request{
		SlaveID:      f.Address,
		FunctionCode: f.FunctionCode,
		Address:      binary.BigEndian.Uint16(data),
	}
	switch f.FunctionCode {
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		req.Value = binary.BigEndian.Uint16(data[2:])
	case modbus.FuncCodeWriteMultipleCoils:
		req.Quantity = binary.BigEndian.Uint16(data[2:])
		values := data[5:]
		count := int(req.Quantity)
		if count > len(values)*8 {
			count = len(values) * 8
		}
		req.Coils = unpackBits(values, count)
	case modbus.FuncCodeWriteMultipleRegisters:
		req.Quantity = binary.BigEndian.Uint16(data[2:])
		values := data[5:]
		req.Registers = make([]uint16, len(values)/2)
		for i := range req.Registers {
			req.Registers[i] = binary.BigEndian.Uint16(values[i*2:])
		}
	default:
		req.Quantity = binary.BigEndian.Uint16(data[2:])
	}
	return req, n, nil
}

// dataBlock creates a sequence of uint16 data.
func dataBlock(value ...uint16) []byte {
	data := make([]byte, 2*len(value))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}

// dataBlockSuffix creates a sequence of uint16 data and appends the suffix
// plus its length.
func dataBlockSuffix(suffix []byte, value ...uint16) []byte {
	length := 2 * len(value)
	data := make([]byte, length+1+len(suffix))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	data[length] = uint8(len(suffix))
	copy(data[length+1:], suffix)
	return data
}

// packBits packs values LSB first: value i goes to bit i%8 of byte i/8.
func packBits(values []bool) []byte {
	packed := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	return packed
}

// unpackBits is the inverse of packBits for the first count bits of b.
func unpackBits(b []byte, count int) []bool {
	values := make([]bool, count)
	for i := range values {
		values[i] = (b[i/8]>>uint(i%8))&1 == 1
	}
	return values
}
