// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
log:
  level: debug
link:
  name: bus1
  type: rtu
  serial:
    device: /dev/ttyS1
    baud_rate: 19200
    parity: e
    rs485: true
    delay_rts_before_send: 2ms
client:
  timeout: 300ms
  queue_size: 8
poll:
  interval: 5s
  targets:
    - units: "1-3"
      table: holding_registers
      address: 100
      quantity: 4
      image_address: 0
image:
  persistence:
    type: file
    path: /tmp/image.bin
metrics:
  address: ":9090"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, args, err := Load([]string{"-c", path, "read-holding-registers", "1", "0", "2"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if strings.Join(args, " ") != "read-holding-registers 1 0 2" {
		t.Errorf("args = %v", args)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	s := cfg.Link.Serial
	if s.Device != "/dev/ttyS1" || s.BaudRate != 19200 || s.Parity != "E" || s.DataBits != 8 || s.StopBits != 1 {
		t.Errorf("Serial = %+v", s)
	}
	if !s.RS485 || s.DelayRtsBeforeSend != 2*time.Millisecond {
		t.Errorf("RS485 settings = %+v", s)
	}
	if s.Timeout != 100*time.Millisecond {
		t.Errorf("Serial.Timeout = %v, want default", s.Timeout)
	}
	if cfg.Client.Timeout != 300*time.Millisecond || cfg.Client.QueueSize != 8 {
		t.Errorf("Client = %+v", cfg.Client)
	}
	if cfg.Poll.Interval != 5*time.Second || len(cfg.Poll.Targets) != 1 {
		t.Fatalf("Poll = %+v", cfg.Poll)
	}
	target := cfg.Poll.Targets[0]
	if target.Units != "1-3" || target.Table != "holding_registers" || target.Address != 100 || target.Quantity != 4 {
		t.Errorf("Target = %+v", target)
	}
	if cfg.Image.Persistence.Type != "file" || cfg.Metrics.Address != ":9090" {
		t.Errorf("Image = %+v, Metrics = %+v", cfg.Image, cfg.Metrics)
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, _, err := Load([]string{"-c", path, "-p", "/dev/ttyUSB3", "-W", "1s", "--log_level", "warn"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Link.Serial.Device != "/dev/ttyUSB3" {
		t.Errorf("Device = %q", cfg.Link.Serial.Device)
	}
	if cfg.Client.Timeout != time.Second {
		t.Errorf("Client.Timeout = %v", cfg.Client.Timeout)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	// Untouched flags keep the file value.
	if cfg.Client.QueueSize != 8 {
		t.Errorf("QueueSize = %d", cfg.Client.QueueSize)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		args []string
	}{
		{"LinkType", "link:\n  type: tcp\n", nil},
		{"Parity", "link:\n  serial:\n    parity: x\n", nil},
		{"TcpAddress", "link:\n  type: rtu-over-tcp\n", nil},
		{"TargetTable", "poll:\n  targets:\n    - units: \"1\"\n      table: files\n      quantity: 1\n", nil},
		{"TargetQuantity", "poll:\n  targets:\n    - units: \"1\"\n      table: coils\n", nil},
		{"PersistencePath", "image:\n  persistence:\n    type: mmap\n", nil},
		{"QueueSize", "", []string{"-Q", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			args := append([]string{"-c", path}, tt.args...)
			if _, _, err := Load(args); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("Load succeeded for a missing explicit config file")
	}
}
