// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/hex"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/crc"
)

// Frame is one complete RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes, low byte first
//
// Payload holds every byte before the CRC, address and function code
// included. Length is the encoded length including the CRC.
type Frame struct {
	Address      byte
	FunctionCode byte
	Length       int
	Payload      []byte
	CRC          uint16
}

// NewFrame builds the frame for slaveID, funcCode and data and computes its CRC.
func NewFrame(slaveID, funcCode byte, data []byte) *Frame {
	payload := make([]byte, 2+len(data))
	payload[0] = slaveID
	payload[1] = funcCode
	copy(payload[2:], data)
	return &Frame{
		Address:      slaveID,
		FunctionCode: funcCode,
		Length:       len(payload) + crcSize,
		Payload:      payload,
		CRC:          crc.Checksum(payload),
	}
}

// Bytes returns the wire encoding of the frame.
func (f *Frame) Bytes() []byte {
	raw := make([]byte, len(f.Payload)+crcSize)
	copy(raw, f.Payload)
	raw[len(raw)-2] = byte(f.CRC)
	raw[len(raw)-1] = byte(f.CRC >> 8)
	return raw
}

// Data returns the bytes after the function code.
func (f *Frame) Data() []byte {
	if len(f.Payload) < 2 {
		return nil
	}
	return f.Payload[2:]
}

// IsException reports whether the frame is an exception response.
func (f *Frame) IsException() bool {
	return f.FunctionCode&modbus.FuncCodeException != 0
}

func (f *Frame) String() string {
	return hex.EncodeToString(f.Bytes())
}

// DecodeResponse extracts the response frame at the start of buf and returns
// it with the number of bytes it occupies.
//
// It returns modbus.ErrInsufficientData when buf does not hold the whole
// frame yet. On a CRC mismatch it returns the frame, its length and a
// *modbus.ChecksumError so the caller can skip the damaged bytes.
func DecodeResponse(buf []byte) (*Frame, int, error) {
	length, err := calculateInboundLength(buf)
	if err != nil {
		return nil, 0, err
	}
	if len(buf) < length {
		return nil, 0, modbus.ErrInsufficientData
	}
	return decodeFrame(buf[:length])
}

// decodeFrame splits raw into payload and trailer and validates the CRC.
func decodeFrame(raw []byte) (*Frame, int, error) {
	length := len(raw)
	payload := make([]byte, length-crcSize)
	copy(payload, raw)

	f := &Frame{
		Address:      raw[0],
		FunctionCode: raw[1],
		Length:       length,
		Payload:      payload,
		CRC:          uint16(raw[length-1])<<8 | uint16(raw[length-2]),
	}
	if checksum := crc.Checksum(payload); checksum != f.CRC {
		return f, length, &modbus.ChecksumError{Expected: checksum, Actual: f.CRC}
	}
	return f, length, nil
}
