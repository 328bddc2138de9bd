// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Link    LinkConfig    `mapstructure:"link"`
	Client  ClientConfig  `mapstructure:"client"`
	Poll    PollConfig    `mapstructure:"poll"`
	Image   ImageConfig   `mapstructure:"image"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"` // Log file path, "" or "-" for stdout
}

// LinkConfig defines the byte stream to the field devices
type LinkConfig struct {
	Name   string       `mapstructure:"name"`                                   // Label in logs and metrics
	Type   string       `mapstructure:"type" validate:"oneof=rtu rtu-over-tcp"` // "rtu", "rtu-over-tcp"
	Serial SerialConfig `mapstructure:"serial"`                                 // Used if Type is "rtu"
	Tcp    TcpConfig    `mapstructure:"tcp"`                                    // Used if Type is "rtu-over-tcp"
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate" validate:"gt=0"`
	DataBits int           `mapstructure:"data_bits" validate:"oneof=5 6 7 8"`
	Parity   string        `mapstructure:"parity" validate:"oneof=N E O"`
	StopBits int           `mapstructure:"stop_bits" validate:"oneof=1 2"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"` // Read timeout of the port

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address string        `mapstructure:"address"` // e.g. "192.168.1.100:4001"
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// ClientConfig defines the request correlator settings
type ClientConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"` // 0 derives it from the response length
	QueueSize int           `mapstructure:"queue_size" validate:"gte=0"`
}

// PollConfig defines the periodic reads of poll mode
type PollConfig struct {
	Interval time.Duration  `mapstructure:"interval" validate:"gt=0"`
	Targets  []TargetConfig `mapstructure:"targets" validate:"dive"`
}

// TargetConfig defines one block read per unit and pass
type TargetConfig struct {
	Units        string `mapstructure:"units" validate:"required"` // "1", "1,2", "1-10"
	Table        string `mapstructure:"table" validate:"oneof=coils discrete_inputs holding_registers input_registers"`
	Address      uint16 `mapstructure:"address"`
	Quantity     uint16 `mapstructure:"quantity" validate:"gt=0"`
	ImageAddress uint16 `mapstructure:"image_address"` // Where the values land in the process image
}

// ImageConfig defines the process image
type ImageConfig struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type" validate:"oneof=memory file mmap sql"`
	Path string `mapstructure:"path" validate:"required_unless=Type memory"` // File path or sqlite DSN
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Address string `mapstructure:"address"` // e.g. ":9090", empty disables it
}

// Load builds the configuration from the command line args and the config
// file they name (or the first one found in the search path). It returns the
// positional arguments left after flag parsing.
func Load(args []string) (*Config, []string, error) {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("modbus-master", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("device", "p", v.GetString("link.serial.device"), "Serial port device name.")
	fs.IntP("baud_rate", "s", v.GetInt("link.serial.baud_rate"), "Serial port speed.")
	fs.StringP("parity", "P", v.GetString("link.serial.parity"), "Serial port parity (N, E, O).")
	fs.StringP("link", "l", v.GetString("link.type"), "Link type (rtu, rtu-over-tcp).")
	fs.StringP("tcp_address", "A", v.GetString("link.tcp.address"), "Serial device server address for rtu-over-tcp.")
	fs.DurationP("timeout", "W", v.GetDuration("client.timeout"), "Response wait time, 0 to derive it from the response length.")
	fs.IntP("queue_size", "Q", v.GetInt("client.queue_size"), "Maximum number of waiting requests, 0 for unbounded.")
	fs.StringP("metrics_address", "M", v.GetString("metrics.address"), "Address of the Prometheus endpoint in poll mode.")
	fs.StringP("log_level", "v", v.GetString("log.level"), "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log_file", "L", v.GetString("log.file"), "Log file name ('-' for logging to STDOUT only).")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	for key, flag := range map[string]string{
		"link.serial.device":    "device",
		"link.serial.baud_rate": "baud_rate",
		"link.serial.parity":    "parity",
		"link.type":             "link",
		"link.tcp.address":      "tcp_address",
		"client.timeout":        "timeout",
		"client.queue_size":     "queue_size",
		"metrics.address":       "metrics_address",
		"log.level":             "log_level",
		"log.file":              "log_file",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	configFile, _ := fs.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbus-master/")
		v.AddConfigPath("$HOME/.modbus-master")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Flags alone are a valid configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.ConfigFile = v.ConfigFileUsed()

	fixupSerial(&config.Link.Serial)
	if err := Validate(&config); err != nil {
		return nil, nil, err
	}
	return &config, fs.Args(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("link.name", "rtu")
	v.SetDefault("link.type", "rtu")
	v.SetDefault("link.serial.device", "/dev/ttyUSB0")
	v.SetDefault("link.serial.baud_rate", 9600)
	v.SetDefault("link.serial.data_bits", 8)
	v.SetDefault("link.serial.parity", "N")
	v.SetDefault("link.serial.stop_bits", 1)
	v.SetDefault("link.serial.timeout", 100*time.Millisecond)
	v.SetDefault("link.tcp.address", "")
	v.SetDefault("link.tcp.timeout", 10*time.Second)
	v.SetDefault("client.timeout", time.Duration(0))
	v.SetDefault("client.queue_size", 0)
	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("image.persistence.type", "memory")
	v.SetDefault("metrics.address", "")
}

// Validate checks field constraints and the settings the link type needs.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch cfg.Link.Type {
	case "rtu":
		if cfg.Link.Serial.Device == "" {
			return errors.New("invalid config: link.serial.device is required for rtu links")
		}
	case "rtu-over-tcp":
		if cfg.Link.Tcp.Address == "" {
			return errors.New("invalid config: link.tcp.address is required for rtu-over-tcp links")
		}
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 100 * time.Millisecond
	}
}
