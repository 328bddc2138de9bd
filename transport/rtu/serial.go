// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ffutop/modbus-master/internal/config"
	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
	"github.com/ffutop/modbus-master/transport"
	"github.com/grid-x/serial"
)

const readBufferSize = rtupacket.MaxSize

// SerialLink is a serial port carrying RTU frames.
type SerialLink struct {
	// Serial port configuration.
	serial.Config

	logger *slog.Logger

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port io.ReadWriteCloser
	// opened lets tests replace serial.Open.
	opened func(*serial.Config) (io.ReadWriteCloser, error)
}

var _ transport.Link = (*SerialLink)(nil)

// NewSerialLink allocates a SerialLink for cfg. The port is opened by
// Connect or by the first Write.
func NewSerialLink(cfg config.SerialConfig, logger *slog.Logger) *SerialLink {
	if logger == nil {
		logger = slog.Default()
	}
	link := &SerialLink{logger: logger}

	// Map internal config to serial.Config
	link.Config.Address = cfg.Device
	link.Config.BaudRate = cfg.BaudRate
	link.Config.DataBits = cfg.DataBits
	link.Config.StopBits = cfg.StopBits
	link.Config.Parity = cfg.Parity
	link.Config.Timeout = cfg.Timeout
	link.Config.RS485 = serial.RS485Config{
		Enabled:            cfg.RS485,
		DelayRtsBeforeSend: cfg.DelayRtsBeforeSend,
		DelayRtsAfterSend:  cfg.DelayRtsAfterSend,
		RtsHighDuringSend:  cfg.RtsHighDuringSend,
		RtsHighAfterSend:   cfg.RtsHighAfterSend,
		RxDuringTx:         cfg.RxDuringTx,
	}
	link.opened = func(c *serial.Config) (io.ReadWriteCloser, error) {
		return serial.Open(c)
	}
	return link
}

func (l *SerialLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.connect(ctx)
	return err
}

// connect opens the serial port if it is not open. Caller must hold the mutex.
func (l *SerialLink) connect(ctx context.Context) (io.ReadWriteCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if l.port == nil {
		port, err := l.opened(&l.Config)
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %w", l.Config.Address, err)
		}
		l.logger.Info("serial port opened", "device", l.Config.Address, "baud_rate", l.Config.BaudRate)
		l.port = port
	}
	return l.port, nil
}

func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.close()
}

// close closes the serial port if it is open. Caller must hold the mutex.
func (l *SerialLink) close() (err error) {
	if l.port != nil {
		err = l.port.Close()
		l.port = nil
	}
	return
}

// Write sends one request frame, opening the port first if needed.
func (l *SerialLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	port, err := l.connect(context.Background())
	l.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return port.Write(p)
}

// Run feeds everything read from the port to sink. Read timeouts of the
// port are idle periods, not failures. Run closes the port when ctx ends.
func (l *SerialLink) Run(ctx context.Context, sink transport.Sink) error {
	l.mu.Lock()
	port, err := l.connect(ctx)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	buf := make([]byte, readBufferSize)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink.Feed(chunk)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case err == nil:
		case errors.Is(err, serial.ErrTimeout):
		default:
			l.drop(port)
			return fmt.Errorf("serial read on %s: %w", l.Config.Address, err)
		}
	}
}

// drop closes port if it is still the open one, so the next Run reopens it.
func (l *SerialLink) drop(port io.ReadWriteCloser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == port {
		l.close()
	}
}
