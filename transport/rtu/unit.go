// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"

	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
)

// Unit is a handle on one field device behind a Client. It holds no state
// of its own; every call goes through the Client queue.
type Unit struct {
	client  *Client
	slaveID byte
}

// Unit returns the handle for slaveID.
func (mb *Client) Unit(slaveID byte) Unit {
	return Unit{client: mb, slaveID: slaveID}
}

// SlaveID returns the unit address.
func (u Unit) SlaveID() byte { return u.slaveID }

func (u Unit) ReadCoils(ctx context.Context, address, quantity uint16) ([]bool, error) {
	return u.client.ReadCoils(ctx, u.slaveID, address, quantity)
}

func (u Unit) ReadDiscreteInputs(ctx context.Context, address, quantity uint16) ([]bool, error) {
	return u.client.ReadDiscreteInputs(ctx, u.slaveID, address, quantity)
}

func (u Unit) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	return u.client.ReadHoldingRegisters(ctx, u.slaveID, address, quantity)
}

func (u Unit) ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	return u.client.ReadInputRegisters(ctx, u.slaveID, address, quantity)
}

func (u Unit) WriteSingleCoil(ctx context.Context, address uint16, state bool) (rtupacket.CoilWrite, error) {
	return u.client.WriteSingleCoil(ctx, u.slaveID, address, state)
}

func (u Unit) WriteSingleRegister(ctx context.Context, address, value uint16) (rtupacket.RegisterWrite, error) {
	return u.client.WriteSingleRegister(ctx, u.slaveID, address, value)
}

func (u Unit) WriteMultipleCoils(ctx context.Context, address uint16, values []bool) (rtupacket.MultipleWrite, error) {
	return u.client.WriteMultipleCoils(ctx, u.slaveID, address, values)
}

func (u Unit) WriteMultipleRegisters(ctx context.Context, address uint16, values []uint16) (rtupacket.MultipleWrite, error) {
	return u.client.WriteMultipleRegisters(ctx, u.slaveID, address, values)
}
