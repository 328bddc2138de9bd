// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
	"github.com/ffutop/modbus-master/transport"
)

const (
	tcpTimeout = 10 * time.Second
)

// Link carries RTU frames over a raw TCP stream, as serial device servers
// expose their ports.
type Link struct {
	Address string
	Timeout time.Duration

	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ transport.Link = (*Link)(nil)

// NewLink allocates a Link to address. The connection is dialed by Connect
// or by the first Write.
func NewLink(address string, timeout time.Duration, logger *slog.Logger) *Link {
	if timeout <= 0 {
		timeout = tcpTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		Address: address,
		Timeout: timeout,
		logger:  logger,
	}
}

// Connect implements transport.Link.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.connect(ctx)
	return err
}

// Close implements transport.Link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.close()
	return nil
}

// Write sends one request frame. A failed write drops the connection so the
// next one redials.
func (l *Link) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	conn, err := l.connect(context.Background())
	if err != nil {
		return 0, fmt.Errorf("modbus: failed to connect to %s: %w", l.Address, err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(l.Timeout)); err != nil {
		l.close()
		return 0, err
	}
	n, err := conn.Write(p)
	if err != nil {
		l.close()
		return n, fmt.Errorf("failed to write to connection: %w", err)
	}
	return n, nil
}

// Run feeds everything read from the connection to sink until ctx ends or
// the connection fails. Run closes the connection when it returns.
func (l *Link) Run(ctx context.Context, sink transport.Sink) error {
	l.mu.Lock()
	conn, err := l.connect(ctx)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("modbus: failed to connect to %s: %w", l.Address, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer l.drop(conn)

	buf := make([]byte, rtupacket.MaxSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink.Feed(chunk)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read from %s: %w", l.Address, err)
		}
	}
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (l *Link) connect(ctx context.Context) (net.Conn, error) {
	if l.conn != nil {
		return l.conn, nil
	}
	dialer := net.Dialer{Timeout: l.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", l.Address)
	if err != nil {
		return nil, err
	}
	l.logger.Info("connected to serial device server", "address", l.Address)
	l.conn = conn
	return conn, nil
}

// close closes the connection and resets the state. Caller must hold the mutex.
func (l *Link) close() {
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}

// drop forgets conn if it is still the current connection.
func (l *Link) drop(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == conn {
		l.close()
	}
}
