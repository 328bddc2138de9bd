// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtu

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ffutop/modbus-master/modbus"
	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
	"github.com/tbrandon/mbserver"
)

// simulator is a field device answering on the other end of the link.
type simulator struct {
	server  *mbserver.Server
	client  *Client
	slaveID byte
}

func newSimulator(slaveID byte) (*Client, *simulator) {
	sim := &simulator{server: mbserver.NewServer(), slaveID: slaveID}
	sim.client = NewClient(sim, Options{Timeout: time.Second, Name: "simulator"})
	return sim.client, sim
}

func (s *simulator) Write(p []byte) (int, error) {
	frame, err := mbserver.NewRTUFrame(p)
	if err != nil {
		return 0, err
	}
	if frame.Address != s.slaveID {
		// Not addressed to this device, stay silent.
		return len(p), nil
	}

	var data []byte
	var exception *mbserver.Exception
	switch frame.GetFunction() {
	case modbus.FuncCodeReadCoils:
		data, exception = mbserver.ReadCoils(s.server, frame)
	case modbus.FuncCodeReadDiscreteInputs:
		data, exception = mbserver.ReadDiscreteInputs(s.server, frame)
	case modbus.FuncCodeReadHoldingRegisters:
		data, exception = mbserver.ReadHoldingRegisters(s.server, frame)
	case modbus.FuncCodeReadInputRegisters:
		data, exception = mbserver.ReadInputRegisters(s.server, frame)
	case modbus.FuncCodeWriteSingleCoil:
		data, exception = mbserver.WriteSingleCoil(s.server, frame)
	case modbus.FuncCodeWriteSingleRegister:
		data, exception = mbserver.WriteHoldingRegister(s.server, frame)
	case modbus.FuncCodeWriteMultipleCoils:
		data, exception = mbserver.WriteMultipleCoils(s.server, frame)
	case modbus.FuncCodeWriteMultipleRegisters:
		data, exception = mbserver.WriteHoldingRegisters(s.server, frame)
	default:
		exception = &mbserver.IllegalFunction
	}

	response := frame.Copy()
	if *exception != mbserver.Success {
		response.SetException(exception)
	} else {
		response.SetData(data)
	}
	raw := response.Bytes()
	go func() {
		// Deliver in two chunks like a serial line with a gap.
		half := len(raw) / 2
		s.client.Feed(raw[:half])
		time.Sleep(time.Millisecond)
		s.client.Feed(raw[half:])
	}()
	return len(p), nil
}

func TestSimulator_ReadWrite(t *testing.T) {
	client, sim := newSimulator(17)
	sim.server.HoldingRegisters[0x6B] = 0x022B
	sim.server.HoldingRegisters[0x6D] = 0x0064
	sim.server.InputRegisters[8] = 10
	sim.server.DiscreteInputs[3] = 1
	unit := client.Unit(17)
	ctx := context.Background()

	regs, err := unit.ReadHoldingRegisters(ctx, 0x6B, 3)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}
	if !reflect.DeepEqual(regs, []uint16{0x022B, 0, 0x0064}) {
		t.Errorf("holding registers = %v", regs)
	}

	regs, err = unit.ReadInputRegisters(ctx, 8, 1)
	if err != nil || len(regs) != 1 || regs[0] != 10 {
		t.Errorf("ReadInputRegisters() = %v, %v", regs, err)
	}

	bits, err := unit.ReadDiscreteInputs(ctx, 0, 5)
	if err != nil {
		t.Fatalf("ReadDiscreteInputs failed: %v", err)
	}
	if !reflect.DeepEqual(bits, []bool{false, false, false, true, false}) {
		t.Errorf("discrete inputs = %v", bits)
	}

	if _, err := unit.WriteSingleCoil(ctx, 4, true); err != nil {
		t.Fatalf("WriteSingleCoil failed: %v", err)
	}
	if sim.server.Coils[4] != 1 {
		t.Errorf("coil 4 = %d, want 1", sim.server.Coils[4])
	}

	if _, err := unit.WriteSingleRegister(ctx, 1, 0xBEEF); err != nil {
		t.Fatalf("WriteSingleRegister failed: %v", err)
	}
	if sim.server.HoldingRegisters[1] != 0xBEEF {
		t.Errorf("register 1 = %#x", sim.server.HoldingRegisters[1])
	}

	mw, err := unit.WriteMultipleRegisters(ctx, 100, []uint16{7, 8, 9})
	if err != nil || mw != (rtupacket.MultipleWrite{Address: 100, Count: 3}) {
		t.Fatalf("WriteMultipleRegisters() = %+v, %v", mw, err)
	}
	if !reflect.DeepEqual(sim.server.HoldingRegisters[100:103], []uint16{7, 8, 9}) {
		t.Errorf("registers 100-102 = %v", sim.server.HoldingRegisters[100:103])
	}

	coils := []bool{true, false, true, true, false, false, true, false, true}
	mw, err = unit.WriteMultipleCoils(ctx, 10, coils)
	if err != nil || mw != (rtupacket.MultipleWrite{Address: 10, Count: 9}) {
		t.Fatalf("WriteMultipleCoils() = %+v, %v", mw, err)
	}
	got, err := unit.ReadCoils(ctx, 10, 9)
	if err != nil {
		t.Fatalf("ReadCoils failed: %v", err)
	}
	if !reflect.DeepEqual(got, coils) {
		t.Errorf("coils = %v, want %v", got, coils)
	}
}

func TestSimulator_Exception(t *testing.T) {
	client, _ := newSimulator(1)

	// Reading past the end of the register table is an illegal address.
	_, err := client.ReadHoldingRegisters(context.Background(), 1, 0xFFFF, 2)
	var ee *modbus.ExceptionError
	if !errors.As(err, &ee) || ee.Code != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("err = %v, want illegal data address", err)
	}
}

func TestSimulator_SilentUnit(t *testing.T) {
	client, _ := newSimulator(1)
	client.opts.Timeout = 30 * time.Millisecond

	if _, err := client.ReadCoils(context.Background(), 2, 0, 1); !errors.Is(err, modbus.ErrRequestTimedOut) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if _, err := client.ReadCoils(context.Background(), 1, 0, 1); err != nil {
		t.Fatalf("request after timeout failed: %v", err)
	}
}
