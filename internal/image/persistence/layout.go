// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"unsafe"

	"github.com/ffutop/modbus-master/internal/image/model"
)

// On-disk layout shared by FileStorage and MmapStorage:
//
//	Coils:            65536 bytes     (Offset 0)
//	DiscreteInputs:   65536 bytes     (Offset 65536)
//	HoldingRegisters: 65536 * 2 bytes (Offset 131072)
//	InputRegisters:   65536 * 2 bytes (Offset 262144)
const (
	sizeCoils    = model.MaxAddress + 1
	sizeDiscrete = model.MaxAddress + 1
	sizeHolding  = (model.MaxAddress + 1) * 2
	sizeInput    = (model.MaxAddress + 1) * 2
	totalSize    = sizeCoils + sizeDiscrete + sizeHolding + sizeInput

	offsetCoils    = 0
	offsetDiscrete = offsetCoils + sizeCoils
	offsetHolding  = offsetDiscrete + sizeDiscrete
	offsetInput    = offsetHolding + sizeHolding
)

// mapBytesToModel constructs a DataModel backed by the provided data slice.
// Registers are viewed in host byte order, so an image file is only
// portable between hosts of the same endianness.
func mapBytesToModel(data []byte) *model.DataModel {
	m := &model.DataModel{}

	m.Coils = data[offsetCoils : offsetCoils+sizeCoils]
	m.DiscreteInputs = data[offsetDiscrete : offsetDiscrete+sizeDiscrete]

	holdingBytes := data[offsetHolding : offsetHolding+sizeHolding]
	m.HoldingRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&holdingBytes[0])), sizeHolding/2)

	inputBytes := data[offsetInput : offsetInput+sizeInput]
	m.InputRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&inputBytes[0])), sizeInput/2)

	return m
}

// blockRange returns the byte range of a table block within the layout.
func blockRange(table model.TableType, address, quantity uint16) (start, end int) {
	switch table {
	case model.TableCoils:
		start = offsetCoils + int(address)
		end = start + int(quantity)
	case model.TableDiscreteInputs:
		start = offsetDiscrete + int(address)
		end = start + int(quantity)
	case model.TableHoldingRegisters:
		start = offsetHolding + int(address)*2
		end = start + int(quantity)*2
	case model.TableInputRegisters:
		start = offsetInput + int(address)*2
		end = start + int(quantity)*2
	}
	if end > totalSize {
		end = totalSize
	}
	return
}
