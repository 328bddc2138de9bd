// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"

	"github.com/ffutop/modbus-master/modbus"
)

// CalculateResponseLength returns the expected length of the response ADU
// to the encoded request adu.
func CalculateResponseLength(adu []byte) int {
	length := MinSize
	switch adu[1] {
	case modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadCoils:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count/8
		if count%8 != 0 {
			length++
		}
	case modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeReadHoldingRegisters:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count*2
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleRegisters:
		length += 4
	default:
	}
	return length
}

// CalculateRequestLength returns the expected total length of the request ADU
// at the start of header.
func CalculateRequestLength(funcCode byte, header []byte) (int, error) {
	switch funcCode {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		// [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return 8, nil
	case modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		// [SlaveID, Func, Addr(2), Quant(2), ByteCount(1), Data(N), CRC(2)]
		if len(header) < 7 {
			return 0, modbus.ErrInsufficientData
		}
		return 7 + int(header[6]) + crcSize, nil
	default:
		return 0, &modbus.UnsupportedFunctionError{FunctionCode: funcCode}
	}
}

// calculateInboundLength returns the total length of the response ADU at
// the start of buf, as far as it can be told from its header.
func calculateInboundLength(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, modbus.ErrInsufficientData
	}
	funcCode := buf[1]
	switch {
	case funcCode&modbus.FuncCodeException != 0:
		return ExceptionSize, nil
	case modbus.IsRead(funcCode):
		if len(buf) < readHeaderSize {
			return 0, modbus.ErrInsufficientData
		}
		return int(buf[2]) + readHeaderSize + crcSize, nil
	case modbus.IsWrite(funcCode):
		return WriteResponseSize, nil
	default:
		return 0, &modbus.UnsupportedFunctionError{FunctionCode: funcCode}
	}
}
