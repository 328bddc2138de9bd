// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ffutop/modbus-master/internal/image/model"
	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

const upsertValue = `INSERT INTO modbus_image (table_type, address, value) VALUES (?, ?, ?)
	ON CONFLICT(table_type, address) DO UPDATE SET value=excluded.value`

// SQLStorage keeps one row per image entry ever written.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	model  *model.DataModel
}

// NewSQLStorage creates a new SQLStorage. The driver must be registered
// with database/sql; "sqlite" is.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Load connects to the DB and loads the stored values.
func (s *SQLStorage) Load() (*model.DataModel, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	m := model.NewDataModel()
	rows, err := db.Query("SELECT table_type, address, value FROM modbus_image")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query image: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t, addr, val int
		if err := rows.Scan(&t, &addr, &val); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		if addr < 0 || addr > model.MaxAddress {
			continue
		}
		switch model.TableType(t) {
		case model.TableCoils:
			m.Coils[addr] = byte(val)
		case model.TableDiscreteInputs:
			m.DiscreteInputs[addr] = byte(val)
		case model.TableHoldingRegisters:
			m.HoldingRegisters[addr] = uint16(val)
		case model.TableInputRegisters:
			m.InputRegisters[addr] = uint16(val)
		}
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	s.model = m
	return m, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS modbus_image (
		table_type INTEGER,
		address INTEGER,
		value INTEGER,
		PRIMARY KEY (table_type, address)
	);
	`)
	return err
}

// Save is a no-op; every update is already stored by OnWrite.
func (s *SQLStorage) Save(*model.DataModel) error {
	return nil
}

// OnWrite upserts the updated block in one transaction.
func (s *SQLStorage) OnWrite(table model.TableType, address, quantity uint16) {
	if s.db == nil || s.model == nil {
		return
	}
	if err := s.store(table, address, quantity); err != nil {
		slog.Error("Failed to persist image block", "table", table, "address", address, "quantity", quantity, "err", err)
	}
}

func (s *SQLStorage) store(table model.TableType, address, quantity uint16) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertValue)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < int(quantity) && int(address)+i <= model.MaxAddress; i++ {
		addr := address + uint16(i)
		if _, err := stmt.Exec(int(table), int(addr), int64(s.model.Value(table, addr))); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
