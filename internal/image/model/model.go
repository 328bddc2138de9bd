// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
)

// TableType represents the type of Modbus data table.
type TableType int

const (
	TableCoils TableType = iota
	TableDiscreteInputs
	TableHoldingRegisters
	TableInputRegisters
)

var tableNames = [...]string{
	TableCoils:            "coils",
	TableDiscreteInputs:   "discrete_inputs",
	TableHoldingRegisters: "holding_registers",
	TableInputRegisters:   "input_registers",
}

func (t TableType) String() string {
	if t < 0 || int(t) >= len(tableNames) {
		return fmt.Sprintf("table(%d)", int(t))
	}
	return tableNames[t]
}

// IsBits reports whether the table holds single bits.
func (t TableType) IsBits() bool {
	return t == TableCoils || t == TableDiscreteInputs
}

// ParseTable returns the table named name, as spelled in the configuration.
func ParseTable(name string) (TableType, error) {
	for i, n := range tableNames {
		if n == name {
			return TableType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown table %q", name)
}

// DataModel holds the last values read from the field devices.
// It uses a simple flat memory model covering the full 16-bit address space.
type DataModel struct {
	mu sync.RWMutex

	// 0x Coils. Stored as 1 (ON) or 0 (OFF).
	Coils []byte
	// 1x Discrete Inputs. Stored as 1 (ON) or 0 (OFF).
	DiscreteInputs []byte
	// 4x Holding Registers.
	HoldingRegisters []uint16
	// 3x Input Registers.
	InputRegisters []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		Coils:            make([]byte, MaxAddress+1),
		DiscreteInputs:   make([]byte, MaxAddress+1),
		HoldingRegisters: make([]uint16, MaxAddress+1),
		InputRegisters:   make([]uint16, MaxAddress+1),
	}
}

func (m *DataModel) bitTable(table TableType) ([]byte, error) {
	switch table {
	case TableCoils:
		return m.Coils, nil
	case TableDiscreteInputs:
		return m.DiscreteInputs, nil
	}
	return nil, fmt.Errorf("%v is not a bit table", table)
}

func (m *DataModel) registerTable(table TableType) ([]uint16, error) {
	switch table {
	case TableHoldingRegisters:
		return m.HoldingRegisters, nil
	case TableInputRegisters:
		return m.InputRegisters, nil
	}
	return nil, fmt.Errorf("%v is not a register table", table)
}

// SetBits stores values in a bit table starting at address.
func (m *DataModel) SetBits(table TableType, address uint16, values []bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bits, err := m.bitTable(table)
	if err != nil {
		return err
	}
	if err := validateRange(address, len(values)); err != nil {
		return err
	}
	for i, v := range values {
		var b byte
		if v {
			b = 1
		}
		bits[int(address)+i] = b
	}
	return nil
}

// Bits returns quantity values of a bit table starting at address.
func (m *DataModel) Bits(table TableType, address, quantity uint16) ([]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bits, err := m.bitTable(table)
	if err != nil {
		return nil, err
	}
	if err := validateRange(address, int(quantity)); err != nil {
		return nil, err
	}
	result := make([]bool, quantity)
	for i := range result {
		result[i] = bits[int(address)+i] != 0
	}
	return result, nil
}

// SetRegisters stores values in a register table starting at address.
func (m *DataModel) SetRegisters(table TableType, address uint16, values []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	regs, err := m.registerTable(table)
	if err != nil {
		return err
	}
	if err := validateRange(address, len(values)); err != nil {
		return err
	}
	copy(regs[address:], values)
	return nil
}

// Registers returns quantity values of a register table starting at address.
func (m *DataModel) Registers(table TableType, address, quantity uint16) ([]uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	regs, err := m.registerTable(table)
	if err != nil {
		return nil, err
	}
	if err := validateRange(address, int(quantity)); err != nil {
		return nil, err
	}
	result := make([]uint16, quantity)
	copy(result, regs[address:])
	return result, nil
}

// Value returns the raw value at address, 0 or 1 for bit tables.
func (m *DataModel) Value(table TableType, address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch table {
	case TableCoils:
		return uint16(m.Coils[address])
	case TableDiscreteInputs:
		return uint16(m.DiscreteInputs[address])
	case TableHoldingRegisters:
		return m.HoldingRegisters[address]
	case TableInputRegisters:
		return m.InputRegisters[address]
	}
	return 0
}

func validateRange(address uint16, quantity int) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+quantity > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
