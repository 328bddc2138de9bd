// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	MinSize = 4
	MaxSize = 256

	ExceptionSize = 5

	// MinResponseSize is the smallest buffer worth handing to DecodeResponse:
	// address, function code, one length or data byte and the CRC.
	MinResponseSize = 5

	// WriteResponseSize is the fixed length of the echo returned for
	// single and multiple writes.
	WriteResponseSize = 8

	// readHeaderSize covers address, function code and byte count.
	readHeaderSize = 3
	crcSize        = 2
)
