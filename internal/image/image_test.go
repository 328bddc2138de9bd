// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package image

import (
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/image/model"
)

// recordingStorage is a memory storage remembering every OnWrite.
type recordingStorage struct {
	writes []string
	saved  bool
	closed bool
}

func (s *recordingStorage) Load() (*model.DataModel, error) { return model.NewDataModel(), nil }
func (s *recordingStorage) Save(*model.DataModel) error     { s.saved = true; return nil }
func (s *recordingStorage) Close() error                    { s.closed = true; return nil }

func (s *recordingStorage) OnWrite(table model.TableType, address, quantity uint16) {
	s.writes = append(s.writes, fmt.Sprintf("%v:%d:%d", table, address, quantity))
}

func TestImage_Update(t *testing.T) {
	storage := &recordingStorage{}
	img, err := New(storage)
	if err != nil {
		t.Fatal(err)
	}

	if err := img.UpdateBits(model.TableCoils, 1, []bool{true, true}); err != nil {
		t.Fatalf("UpdateBits failed: %v", err)
	}
	if err := img.UpdateRegisters(model.TableHoldingRegisters, 2, []uint16{7, 8, 9}); err != nil {
		t.Fatalf("UpdateRegisters failed: %v", err)
	}
	if err := img.UpdateRegisters(model.TableCoils, 0, []uint16{1}); err == nil {
		t.Error("UpdateRegisters accepted a bit table")
	}

	want := []string{"coils:1:2", "holding_registers:2:3"}
	if !reflect.DeepEqual(storage.writes, want) {
		t.Errorf("OnWrite calls = %v, want %v", storage.writes, want)
	}

	regs, _ := img.Registers(model.TableHoldingRegisters, 2, 3)
	bits, _ := img.Bits(model.TableCoils, 0, 3)
	if !reflect.DeepEqual(regs, []uint16{7, 8, 9}) || !reflect.DeepEqual(bits, []bool{false, true, true}) {
		t.Errorf("image = %v %v", regs, bits)
	}

	if err := img.Close(); err != nil || !storage.saved || !storage.closed {
		t.Errorf("Close() = %v, saved %v, closed %v", err, storage.saved, storage.closed)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	img, err := Open(config.PersistenceConfig{Type: "file", Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := img.UpdateRegisters(model.TableInputRegisters, 0, []uint16{42}); err != nil {
		t.Fatal(err)
	}
	if err := img.Close(); err != nil {
		t.Fatal(err)
	}

	img, err = Open(config.PersistenceConfig{Type: "file", Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer img.Close()
	if regs, _ := img.Registers(model.TableInputRegisters, 0, 1); regs[0] != 42 {
		t.Errorf("register after reopen = %d", regs[0])
	}
}
