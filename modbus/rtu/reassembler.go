// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"

	"github.com/ffutop/modbus-master/modbus"
)

// Reassembler turns an arbitrarily chunked byte stream into response frames.
// It is not safe for concurrent use.
type Reassembler struct {
	buf []byte
}

// Feed appends p to the buffer and reports every complete frame to fn, in
// order. A valid frame is reported with a nil error. A frame whose CRC does
// not match is reported with a *modbus.ChecksumError and its declared length
// is dropped. A header with an unknown function code is reported with a nil
// frame and the whole buffer is dropped, since no length rule exists to find
// the next frame boundary.
//
// fn must not call Feed or Reset.
func (r *Reassembler) Feed(p []byte, fn func(*Frame, error)) {
	r.buf = append(r.buf, p...)

	for len(r.buf) >= MinResponseSize {
		f, n, err := DecodeResponse(r.buf)
		switch {
		case errors.Is(err, modbus.ErrInsufficientData):
			return
		case errors.Is(err, modbus.ErrUnsupportedFunc):
			fn(nil, err)
			r.buf = r.buf[:0]
			return
		default:
			fn(f, err)
		}
		if n <= 0 || n > len(r.buf) {
			return
		}
		r.buf = append(r.buf[:0], r.buf[n:]...)
	}
}

// Reset discards all buffered bytes.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}

// Len returns the number of buffered bytes.
func (r *Reassembler) Len() int {
	return len(r.buf)
}
