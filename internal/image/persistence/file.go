// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/modbus-master/internal/image/model"
)

// FileStorage keeps the image in a plain file using the layout in layout.go.
// Updated blocks are written back with WriteAt and synced.
type FileStorage struct {
	path string
	file *os.File
	data []byte
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Load reads the image file, creating it if necessary.
func (fs *FileStorage) Load() (*model.DataModel, error) {
	f, err := os.OpenFile(fs.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(totalSize) {
		if err := f.Truncate(int64(totalSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize file: %w", err)
		}
	}

	data := make([]byte, totalSize)
	if _, err := io.ReadFull(f, data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	fs.file = f
	fs.data = data

	return mapBytesToModel(data), nil
}

// Save writes the whole image and syncs it to disk.
func (fs *FileStorage) Save(*model.DataModel) error {
	return fs.sync(0, totalSize)
}

// OnWrite writes the updated block back and syncs it.
func (fs *FileStorage) OnWrite(table model.TableType, address, quantity uint16) {
	start, end := blockRange(table, address, quantity)
	if err := fs.sync(start, end); err != nil {
		slog.Error("Failed to sync image file", "table", table, "address", address, "err", err)
	}
}

func (fs *FileStorage) sync(start, end int) error {
	if fs.data == nil || fs.file == nil || start >= end {
		return nil
	}
	if _, err := fs.file.WriteAt(fs.data[start:end], int64(start)); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	return nil
}

// Close closes the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
