// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the function codes, protocol limits and error values
// shared by the RTU codec, the request correlator and the link adapters.
package modbus

// Function Codes
const (
	FuncCodeReadCoils              = 0x01
	FuncCodeReadDiscreteInputs     = 0x02
	FuncCodeReadHoldingRegisters   = 0x03
	FuncCodeReadInputRegisters     = 0x04
	FuncCodeWriteSingleCoil        = 0x05
	FuncCodeWriteSingleRegister    = 0x06
	FuncCodeWriteMultipleCoils     = 0x0F
	FuncCodeWriteMultipleRegisters = 0x10

	// FuncCodeException is set in the function code of an exception response.
	FuncCodeException = 0x80
)

// Quantity limits per function, as defined by the application protocol.
// They are documented here for callers; the codec encodes whatever it is given.
const (
	MaxReadCoils             = 2000
	MaxReadRegisters         = 125
	MaxWriteCoils            = 1968
	MaxWriteRegisters        = 123
	CoilOn            uint16 = 0xFF00
	CoilOff           uint16 = 0x0000
)

// FunctionName returns a short human readable name for a function code.
func FunctionName(code byte) string {
	switch code &^ FuncCodeException {
	case FuncCodeReadCoils:
		return "read_coils"
	case FuncCodeReadDiscreteInputs:
		return "read_discrete_inputs"
	case FuncCodeReadHoldingRegisters:
		return "read_holding_registers"
	case FuncCodeReadInputRegisters:
		return "read_input_registers"
	case FuncCodeWriteSingleCoil:
		return "write_single_coil"
	case FuncCodeWriteSingleRegister:
		return "write_single_register"
	case FuncCodeWriteMultipleCoils:
		return "write_multiple_coils"
	case FuncCodeWriteMultipleRegisters:
		return "write_multiple_registers"
	default:
		return "unknown"
	}
}

// IsRead reports whether code is one of the four read functions.
func IsRead(code byte) bool {
	return code >= FuncCodeReadCoils && code <= FuncCodeReadInputRegisters
}

// IsWrite reports whether code is one of the four write functions.
func IsWrite(code byte) bool {
	switch code {
	case FuncCodeWriteSingleCoil,
		FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils,
		FuncCodeWriteMultipleRegisters:
		return true
	}
	return false
}
