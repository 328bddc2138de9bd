// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package image holds the process image: the last values polled from the
// field devices, kept in a DataModel and mirrored to a Storage.
package image

import (
	"fmt"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/image/model"
	"github.com/ffutop/modbus-master/internal/image/persistence"
)

// Image is a DataModel whose updates are passed to its Storage.
type Image struct {
	model   *model.DataModel
	storage persistence.Storage
}

// Open loads the image from the storage selected by cfg.
func Open(cfg config.PersistenceConfig) (*Image, error) {
	storage, err := persistence.New(cfg)
	if err != nil {
		return nil, err
	}
	return New(storage)
}

// New loads the image from storage.
func New(storage persistence.Storage) (*Image, error) {
	m, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load process image: %w", err)
	}
	return &Image{model: m, storage: storage}, nil
}

// UpdateBits stores values in a bit table and persists the block.
func (img *Image) UpdateBits(table model.TableType, address uint16, values []bool) error {
	if err := img.model.SetBits(table, address, values); err != nil {
		return err
	}
	img.storage.OnWrite(table, address, uint16(len(values)))
	return nil
}

// UpdateRegisters stores values in a register table and persists the block.
func (img *Image) UpdateRegisters(table model.TableType, address uint16, values []uint16) error {
	if err := img.model.SetRegisters(table, address, values); err != nil {
		return err
	}
	img.storage.OnWrite(table, address, uint16(len(values)))
	return nil
}

func (img *Image) Bits(table model.TableType, address, quantity uint16) ([]bool, error) {
	return img.model.Bits(table, address, quantity)
}

func (img *Image) Registers(table model.TableType, address, quantity uint16) ([]uint16, error) {
	return img.model.Registers(table, address, quantity)
}

// Close flushes the image and releases its storage.
func (img *Image) Close() error {
	if err := img.storage.Save(img.model); err != nil {
		img.storage.Close()
		return err
	}
	return img.storage.Close()
}
