// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "github.com/ffutop/modbus-master/modbus"

// Expectation is the shape of the response awaited for a request.
type Expectation struct {
	Address      byte
	FunctionCode byte
	Length       int
}

// ExpectationFor returns the expectation for the encoded request adu.
func ExpectationFor(adu []byte) Expectation {
	return Expectation{
		Address:      adu[0],
		FunctionCode: adu[1],
		Length:       CalculateResponseLength(adu),
	}
}

// Match returns nil if f has the address, length and function code of e.
// Otherwise it returns a *modbus.UnexpectedResponseError naming the first
// field that disagrees.
func Match(f *Frame, e Expectation) error {
	switch {
	case f.Address != e.Address:
		return &modbus.UnexpectedResponseError{Field: "address", Want: int(e.Address), Got: int(f.Address)}
	case f.Length != e.Length:
		return &modbus.UnexpectedResponseError{Field: "length", Want: e.Length, Got: f.Length}
	case f.FunctionCode != e.FunctionCode:
		return &modbus.UnexpectedResponseError{Field: "function code", Want: int(e.FunctionCode), Got: int(f.FunctionCode)}
	}
	return nil
}

// Matches reports whether f matches e.
func Matches(f *Frame, e Expectation) bool {
	return Match(f, e) == nil
}

// IsExceptionFor reports whether f is the exception response of the unit
// and function e awaits.
func (e Expectation) IsExceptionFor(f *Frame) bool {
	return f.Address == e.Address && f.FunctionCode == e.FunctionCode|modbus.FuncCodeException
}
