// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/image"
	"github.com/ffutop/modbus-master/internal/image/model"
	"github.com/ffutop/modbus-master/transport/rtu"
)

// Target is one block read from every listed unit on each pass.
// The block of the i-th unit lands at ImageAddress + i*Quantity.
type Target struct {
	Units        []byte
	Table        model.TableType
	Address      uint16
	Quantity     uint16
	ImageAddress uint16
}

// Stats counts the reads of one pass.
type Stats struct {
	Reads    int
	Failures int
}

// Poller reads its targets through a Client into a process image.
type Poller struct {
	Name     string
	client   *rtu.Client
	image    *image.Image
	targets  []Target
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a new Poller instance.
func NewPoller(name string, client *rtu.Client, img *image.Image, targets []Target, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		Name:     name,
		client:   client,
		image:    img,
		targets:  targets,
		interval: interval,
		logger:   logger.With("poller", name),
	}
}

// ParseUnits parses a string of unit addresses (e.g. "1,2,5-10") into a slice of bytes.
func ParseUnits(input string) ([]byte, error) {
	var ids []byte
	parts := strings.Split(input, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			// Range
			ranges := strings.Split(part, "-")
			if len(ranges) != 2 {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(ranges[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start of range: %w", err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(ranges[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end of range: %w", err)
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
			for i := start; i <= end; i++ {
				if i < 0 || i > 255 {
					return nil, fmt.Errorf("unit out of range: %d", i)
				}
				ids = append(ids, byte(i))
			}
		} else {
			// Single
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid unit: %w", err)
			}
			if id < 0 || id > 255 {
				return nil, fmt.Errorf("unit out of range: %d", id)
			}
			ids = append(ids, byte(id))
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no units in %q", input)
	}
	return ids, nil
}

// NewTargets converts the configured targets, checking that every block
// fits in the process image.
func NewTargets(cfgs []config.TargetConfig) ([]Target, error) {
	targets := make([]Target, 0, len(cfgs))
	for i, cfg := range cfgs {
		units, err := ParseUnits(cfg.Units)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		table, err := model.ParseTable(cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		if cfg.Quantity == 0 {
			return nil, fmt.Errorf("target %d: quantity must be greater than 0", i)
		}
		if end := int(cfg.ImageAddress) + len(units)*int(cfg.Quantity); end > model.MaxAddress+1 {
			return nil, fmt.Errorf("target %d: image block ends at %d, beyond the address space", i, end)
		}
		targets = append(targets, Target{
			Units:        units,
			Table:        table,
			Address:      cfg.Address,
			Quantity:     cfg.Quantity,
			ImageAddress: cfg.ImageAddress,
		})
	}
	return targets, nil
}

// Run polls once immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		stats := p.Poll(ctx)
		p.logger.Debug("poll pass done", "reads", stats.Reads, "failures", stats.Failures)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads every target of every unit once. Failed reads are logged and
// leave the image untouched; they are not retried within the pass.
func (p *Poller) Poll(ctx context.Context) Stats {
	var stats Stats
	for _, target := range p.targets {
		for i, id := range target.Units {
			if ctx.Err() != nil {
				return stats
			}
			stats.Reads++
			dest := target.ImageAddress + uint16(i)*target.Quantity
			if err := p.read(ctx, p.client.Unit(id), target, dest); err != nil {
				stats.Failures++
				if !errors.Is(err, context.Canceled) {
					p.logger.Warn("poll read failed", "slave_id", id, "table", target.Table, "address", target.Address, "quantity", target.Quantity, "err", err)
				}
			}
		}
	}
	return stats
}

func (p *Poller) read(ctx context.Context, unit rtu.Unit, target Target, dest uint16) error {
	switch target.Table {
	case model.TableCoils, model.TableDiscreteInputs:
		read := unit.ReadCoils
		if target.Table == model.TableDiscreteInputs {
			read = unit.ReadDiscreteInputs
		}
		bits, err := read(ctx, target.Address, target.Quantity)
		if err != nil {
			return err
		}
		return p.image.UpdateBits(target.Table, dest, bits)
	default:
		read := unit.ReadHoldingRegisters
		if target.Table == model.TableInputRegisters {
			read = unit.ReadInputRegisters
		}
		regs, err := read(ctx, target.Address, target.Quantity)
		if err != nil {
			return err
		}
		return p.image.UpdateRegisters(target.Table, dest, regs)
	}
}
