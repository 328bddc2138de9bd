// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/image/model"
)

// Storage defines the interface for persisting the process image.
type Storage interface {
	// Load loads the data model from storage.
	// If no data exists, it returns a new zeroed model.
	Load() (*model.DataModel, error)

	// Save flushes the whole data model to storage.
	Save(model *model.DataModel) error

	// OnWrite is a hook called after a block of the model was updated.
	OnWrite(table model.TableType, address, quantity uint16)

	Close() error
}

// New returns the storage selected by cfg.
func New(cfg config.PersistenceConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		return NewFileStorage(cfg.Path), nil
	case "mmap":
		return NewMmapStorage(cfg.Path), nil
	case "sql":
		return NewSQLStorage(sqliteDriver, cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.Type)
	}
}
