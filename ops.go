// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ffutop/modbus-master/transport/rtu"
)

const usage = `usage: modbus-master [flags] <op> [args]

ops:
  read-coils             <unit> <address> <quantity>
  read-discrete-inputs   <unit> <address> <quantity>
  read-holding-registers <unit> <address> <quantity>
  read-input-registers   <unit> <address> <quantity>
  write-coil             <unit> <address> <on|off>
  write-register         <unit> <address> <value>
  write-coils            <unit> <address> <on|off>...
  write-registers        <unit> <address> <value>...
  poll`

// runOperation executes the one-shot operation named by args[0] and prints
// its result to out.
func runOperation(ctx context.Context, client *rtu.Client, args []string, out io.Writer) error {
	if len(args) < 4 {
		return fmt.Errorf("%s: missing arguments\n%s", args[0], usage)
	}
	unitID, err := parseUint(args[1], 8)
	if err != nil {
		return fmt.Errorf("invalid unit %q: %w", args[1], err)
	}
	address, err := parseUint(args[2], 16)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args[2], err)
	}
	unit := client.Unit(byte(unitID))
	addr := uint16(address)
	values := args[3:]

	switch args[0] {
	case "read-coils", "read-discrete-inputs":
		quantity, err := parseUint(values[0], 16)
		if err != nil {
			return fmt.Errorf("invalid quantity %q: %w", values[0], err)
		}
		read := unit.ReadCoils
		if args[0] == "read-discrete-inputs" {
			read = unit.ReadDiscreteInputs
		}
		bits, err := read(ctx, addr, uint16(quantity))
		if err != nil {
			return err
		}
		for i, b := range bits {
			fmt.Fprintf(out, "%d\t%s\n", int(addr)+i, onOff(b))
		}
	case "read-holding-registers", "read-input-registers":
		quantity, err := parseUint(values[0], 16)
		if err != nil {
			return fmt.Errorf("invalid quantity %q: %w", values[0], err)
		}
		read := unit.ReadHoldingRegisters
		if args[0] == "read-input-registers" {
			read = unit.ReadInputRegisters
		}
		regs, err := read(ctx, addr, uint16(quantity))
		if err != nil {
			return err
		}
		for i, r := range regs {
			fmt.Fprintf(out, "%d\t%d\t0x%04X\n", int(addr)+i, r, r)
		}
	case "write-coil":
		state, err := parseState(values[0])
		if err != nil {
			return err
		}
		res, err := unit.WriteSingleCoil(ctx, addr, state)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%s\n", res.Address, onOff(res.State))
	case "write-register":
		value, err := parseUint(values[0], 16)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", values[0], err)
		}
		res, err := unit.WriteSingleRegister(ctx, addr, uint16(value))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%d\n", res.Address, res.Value)
	case "write-coils":
		states := make([]bool, len(values))
		for i, v := range values {
			if states[i], err = parseState(v); err != nil {
				return err
			}
		}
		res, err := unit.WriteMultipleCoils(ctx, addr, states)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%d\n", res.Address, res.Count)
	case "write-registers":
		regs := make([]uint16, len(values))
		for i, v := range values {
			value, err := parseUint(v, 16)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", v, err)
			}
			regs[i] = uint16(value)
		}
		res, err := unit.WriteMultipleRegisters(ctx, addr, regs)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%d\n", res.Address, res.Count)
	default:
		return fmt.Errorf("unknown op %q\n%s", args[0], usage)
	}
	return nil
}

// parseUint accepts decimal, 0x hex and 0o octal values.
func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 0, bits)
}

func parseState(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid coil state %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
