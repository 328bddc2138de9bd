// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/ffutop/modbus-master/modbus"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		wantLen  int
		wantFunc byte
		wantErr  error
	}{
		{"ReadCoils", []byte{0x01, 0x01, 0x02, 0x03, 0x00, 0xB9, 0x0C}, 7, 0x01, nil},
		{"WriteSingleCoilEcho", []byte{0x01, 0x05, 0x00, 0x01, 0xFF, 0x00, 0xDD, 0xFA}, 8, 0x05, nil},
		{"TrailingBytesIgnored", []byte{0x60, 0x06, 0x00, 0x00, 0x00, 0x20, 0x80, 0x63, 0x01}, 8, 0x06, nil},
		{"BadCRC", []byte{0x01, 0x01, 0x02, 0x03, 0x00, 0x0C, 0xB9}, 7, 0x01, modbus.ErrChecksum},
		{"Partial", []byte{0x01, 0x01, 0x02, 0x03, 0x00, 0xB9}, 0, 0, modbus.ErrInsufficientData},
		{"HeaderOnly", []byte{0x01}, 0, 0, modbus.ErrInsufficientData},
		{"Unsupported", []byte{0x01, 0x2B, 0x00, 0x00, 0x00}, 0, 0, modbus.ErrUnsupportedFunc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, n, err := DecodeResponse(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.wantLen {
				t.Errorf("DecodeResponse() consumed %d, want %d", n, tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}
			if f.FunctionCode != tt.wantFunc || f.Length != tt.wantLen || f.Address != tt.raw[0] {
				t.Errorf("DecodeResponse() frame = %+v", f)
			}
			if !bytes.Equal(f.Payload, tt.raw[:tt.wantLen-2]) {
				t.Errorf("Payload = % X, want % X", f.Payload, tt.raw[:tt.wantLen-2])
			}
		})
	}
}

func TestFrame_Bytes(t *testing.T) {
	f := NewFrame(0x01, 0x01, []byte{0x02, 0x03, 0x00})
	want := []byte{0x01, 0x01, 0x02, 0x03, 0x00, 0xB9, 0x0C}
	if got := f.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() = % X, want % X", got, want)
	}
	if f.Length != len(want) {
		t.Errorf("Length = %d, want %d", f.Length, len(want))
	}
	if f.String() != "0101020300b90c" {
		t.Errorf("String() = %s", f.String())
	}
}

func TestDecodeBits(t *testing.T) {
	f, _, err := DecodeResponse([]byte{0x01, 0x01, 0x02, 0x03, 0x00, 0xB9, 0x0C})
	if err != nil {
		t.Fatal(err)
	}
	bits, err := DecodeBits(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(bits) != 16 {
		t.Fatalf("len(bits) = %d, want 16", len(bits))
	}
	want := []bool{true, true, false, false, false, false, false, false}
	if !reflect.DeepEqual(bits[:8], want) {
		t.Errorf("bits[:8] = %v, want %v", bits[:8], want)
	}
	for i := 8; i < 16; i++ {
		if bits[i] {
			t.Errorf("bit %d set", i)
		}
	}
	if _, err := DecodeRegisters(f); err == nil {
		t.Error("DecodeRegisters accepted a coil response")
	}
}

func TestDecodeRegisters(t *testing.T) {
	f := NewFrame(0x11, 0x03, []byte{0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64})
	values, err := DecodeRegisters(f)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint16{0x022B, 0x0000, 0x0064}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("DecodeRegisters() = %v, want %v", values, want)
	}

	short := NewFrame(0x11, 0x04, []byte{0x04, 0x00, 0x0A})
	if _, err := DecodeRegisters(short); err == nil {
		t.Error("DecodeRegisters accepted a truncated payload")
	}
}

func TestDecodeWriteEchoes(t *testing.T) {
	coil, err := DecodeCoilWrite(NewFrame(1, 0x05, []byte{0x00, 0x01, 0xFF, 0x00}))
	if err != nil || coil != (CoilWrite{Address: 1, State: true}) {
		t.Errorf("DecodeCoilWrite() = %+v, %v", coil, err)
	}
	coil, err = DecodeCoilWrite(NewFrame(1, 0x05, []byte{0x00, 0x02, 0x00, 0x00}))
	if err != nil || coil != (CoilWrite{Address: 2, State: false}) {
		t.Errorf("DecodeCoilWrite() = %+v, %v", coil, err)
	}
	reg, err := DecodeRegisterWrite(NewFrame(96, 0x06, []byte{0x00, 0x00, 0x00, 0x20}))
	if err != nil || reg != (RegisterWrite{Address: 0, Value: 32}) {
		t.Errorf("DecodeRegisterWrite() = %+v, %v", reg, err)
	}
	multi, err := DecodeMultipleWrite(NewFrame(0x11, 0x0F, []byte{0x00, 0x13, 0x00, 0x0A}))
	if err != nil || multi != (MultipleWrite{Address: 0x13, Count: 10}) {
		t.Errorf("DecodeMultipleWrite() = %+v, %v", multi, err)
	}
	multi, err = DecodeMultipleWrite(NewFrame(0x11, 0x10, []byte{0x00, 0x01, 0x00, 0x02}))
	if err != nil || multi != (MultipleWrite{Address: 1, Count: 2}) {
		t.Errorf("DecodeMultipleWrite() = %+v, %v", multi, err)
	}
	if _, err := DecodeMultipleWrite(NewFrame(1, 0x06, []byte{0x00, 0x01, 0x00, 0x02})); err == nil {
		t.Error("DecodeMultipleWrite accepted a single register echo")
	}
}

func TestDecodeException(t *testing.T) {
	raw := NewFrame(0x0A, 0x81, []byte{0x02}).Bytes()
	f, n, err := DecodeResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if n != ExceptionSize {
		t.Errorf("consumed %d, want %d", n, ExceptionSize)
	}
	exc := DecodeException(f)
	if exc == nil || exc.FunctionCode != 0x01 || exc.Code != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("DecodeException() = %+v", exc)
	}
	if !errors.Is(exc, modbus.ErrException) {
		t.Error("exception does not match ErrException")
	}
	if DecodeException(NewFrame(1, 0x06, []byte{0, 0, 0, 0})) != nil {
		t.Error("DecodeException() returned an exception for a normal frame")
	}
}
