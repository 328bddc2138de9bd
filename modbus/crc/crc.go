// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc computes the CRC-16/MODBUS checksum (reflected polynomial
// 0xA001, initial value 0xFFFF, no final xor).
package crc

import "github.com/sigurn/crc16"

var table = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC of b. On the wire it is sent low byte first.
func Checksum(b []byte) uint16 {
	return crc16.Checksum(b, table)
}

// CRC is an incremental checksum accumulator.
type CRC struct {
	value uint16
}

// Reset sets the accumulator to the initial value.
func (crc *CRC) Reset() *CRC {
	crc.value = crc16.Init(table)
	return crc
}

// PushBytes feeds b into the accumulator.
func (crc *CRC) PushBytes(b []byte) *CRC {
	crc.value = crc16.Update(crc.value, b, table)
	return crc
}

// Value returns the checksum of everything pushed since the last Reset.
func (crc *CRC) Value() uint16 {
	return crc16.Complete(crc.value, table)
}

// Verify reports whether the last two bytes of adu are the little-endian CRC
// of the bytes before them.
func Verify(adu []byte) bool {
	n := len(adu)
	if n < 2 {
		return false
	}
	return Checksum(adu[:n-2]) == uint16(adu[n-1])<<8|uint16(adu[n-2])
}
