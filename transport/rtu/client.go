// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/modbus-master/internal/metrics"
	"github.com/ffutop/modbus-master/modbus"
	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
)

const (
	// Floor of the derived response timeout.
	minTimeout = 250 * time.Millisecond

	defaultName = "rtu"
)

// Options configures a Client.
type Options struct {
	// Timeout is the fixed response timeout. Zero derives it per request.
	Timeout time.Duration
	// TimeoutFunc derives the response timeout from the awaited response
	// when Timeout is zero. A nil func or a non-positive result falls back
	// to AdaptiveTimeout.
	TimeoutFunc func(rtupacket.Expectation) time.Duration
	// QueueSize bounds the number of requests waiting for dispatch.
	// Zero means unbounded.
	QueueSize int
	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
	// Name labels metrics and log lines of this client.
	Name string
}

// Client is a Modbus RTU master. It keeps at most one request on the wire,
// dispatches concurrent callers in the order they called, and matches the
// bytes fed back from the link against the request in flight.
type Client struct {
	w      io.Writer
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	asm     rtupacket.Reassembler
	active  *call
	tail    <-chan struct{}
	waiting int
}

type result struct {
	frame *rtupacket.Frame
	err   error
}

// call is one request from enqueue to settlement.
type call struct {
	funcCode byte
	adu      []byte
	expect   rtupacket.Expectation
	timer    *time.Timer
	started  time.Time
	result   chan result   // buffered, receives exactly one value
	done     chan struct{} // closed when the next call may dispatch
}

// NewClient allocates a Client writing requests to w. Bytes received from
// the link must be passed to Feed.
func NewClient(w io.Writer, opts Options) *Client {
	if opts.Name == "" {
		opts.Name = defaultName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	idle := make(chan struct{})
	close(idle)
	return &Client{
		w:      w,
		opts:   opts,
		logger: logger.With("link", opts.Name),
		tail:   idle,
	}
}

// AdaptiveTimeout is the default timeout for a response of length bytes:
// the byte time at a 9600 baud equivalent with overhead, at least 250ms.
func AdaptiveTimeout(length int) time.Duration {
	d := time.Duration(length*150000/9600) * time.Millisecond
	if d < minTimeout {
		return minTimeout
	}
	return d
}

// Send dispatches req once every earlier request has settled and waits for
// its response frame.
//
// If ctx ends before dispatch the request leaves the queue without being
// written. If ctx ends while the request is in flight Send returns ctx.Err()
// and the request still occupies the link until it settles.
func (mb *Client) Send(ctx context.Context, req *rtupacket.Request) (*rtupacket.Frame, error) {
	adu, err := req.Encode()
	if err != nil {
		return nil, err
	}
	cl := &call{
		funcCode: req.FunctionCode,
		adu:      adu,
		expect:   rtupacket.ExpectationFor(adu),
		result:   make(chan result, 1),
		done:     make(chan struct{}),
	}

	prev, err := mb.enqueue(cl)
	if err != nil {
		metrics.ObserveRequest(mb.opts.Name, cl.funcCode, err, 0)
		return nil, err
	}

	select {
	case <-prev:
	case <-ctx.Done():
		mb.leave(cl, prev)
		metrics.ObserveRequest(mb.opts.Name, cl.funcCode, ctx.Err(), 0)
		return nil, ctx.Err()
	}

	mb.dispatch(cl)

	select {
	case r := <-cl.result:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue appends cl to the queue and returns the channel closed when its
// predecessor settles.
func (mb *Client) enqueue(cl *call) (<-chan struct{}, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.opts.QueueSize > 0 && mb.waiting >= mb.opts.QueueSize {
		mb.logger.Warn("request queue saturated", "waiting", mb.waiting, "request", hex.EncodeToString(cl.adu))
		return nil, modbus.ErrQueueSaturated
	}
	prev := mb.tail
	mb.tail = cl.done
	mb.waiting++
	metrics.SetQueueDepth(mb.opts.Name, mb.waiting)
	return prev, nil
}

// leave removes a call that gave up before dispatch. Its turn is still
// passed on once its predecessor settles.
func (mb *Client) leave(cl *call, prev <-chan struct{}) {
	mb.mu.Lock()
	mb.waiting--
	metrics.SetQueueDepth(mb.opts.Name, mb.waiting)
	mb.mu.Unlock()

	go func() {
		<-prev
		close(cl.done)
	}()
}

// dispatch makes cl the request in flight and writes it to the link.
func (mb *Client) dispatch(cl *call) {
	mb.mu.Lock()
	mb.waiting--
	metrics.SetQueueDepth(mb.opts.Name, mb.waiting)
	// Bytes received before this request cannot belong to its response.
	mb.asm.Reset()
	mb.active = cl
	timeout := mb.timeoutFor(cl.expect)
	cl.started = time.Now()
	cl.timer = time.AfterFunc(timeout, func() {
		mb.expire(cl, timeout)
	})
	mb.mu.Unlock()

	mb.logger.Debug("send to modbus slave", "request", hex.EncodeToString(cl.adu), "timeout", timeout)
	// The link may feed the response before Write returns, so the lock is
	// not held here.
	if _, err := mb.w.Write(cl.adu); err != nil {
		mb.mu.Lock()
		mb.settle(cl, nil, fmt.Errorf("modbus: failed to write request: %w", err))
		mb.mu.Unlock()
	}
}

func (mb *Client) timeoutFor(e rtupacket.Expectation) time.Duration {
	if mb.opts.Timeout > 0 {
		return mb.opts.Timeout
	}
	if mb.opts.TimeoutFunc != nil {
		if d := mb.opts.TimeoutFunc(e); d > 0 {
			return d
		}
	}
	return AdaptiveTimeout(e.Length)
}

func (mb *Client) expire(cl *call, timeout time.Duration) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.settle(cl, nil, &modbus.TimeoutError{
		SlaveID:      cl.expect.Address,
		FunctionCode: cl.expect.FunctionCode,
		Timeout:      timeout,
	})
}

// settle completes cl if it is still in flight. Caller must hold the mutex.
func (mb *Client) settle(cl *call, f *rtupacket.Frame, err error) {
	if mb.active != cl {
		return
	}
	mb.active = nil
	cl.timer.Stop()
	elapsed := time.Since(cl.started)

	cl.result <- result{frame: f, err: err}
	close(cl.done)

	metrics.ObserveRequest(mb.opts.Name, cl.funcCode, err, elapsed)
	if err != nil {
		mb.logger.Warn("request failed", "slave_id", cl.expect.Address, "function", modbus.FunctionName(cl.funcCode), "elapsed", elapsed, "error", err)
	}
}

// Feed passes bytes received from the link to the client.
func (mb *Client) Feed(p []byte) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.logger.Debug("recv from modbus slave", "data", hex.EncodeToString(p))
	mb.asm.Feed(p, mb.handleFrame)
}

// handleFrame routes one reassembled frame. Caller must hold the mutex.
func (mb *Client) handleFrame(f *rtupacket.Frame, err error) {
	cl := mb.active

	switch {
	case errors.Is(err, modbus.ErrChecksum):
		metrics.IncChecksumFault(mb.opts.Name)
		mb.logger.Warn("discarding frame with bad crc", "frame", f.String(), "error", err)
		if cl != nil {
			mb.settle(cl, nil, err)
		}
	case err != nil:
		mb.logger.Warn("discarding receive buffer", "error", err)
		if cl != nil {
			mb.settle(cl, nil, err)
		}
	case cl == nil:
		mb.logger.Warn("dropping unsolicited frame", "frame", f.String())
	case cl.expect.IsExceptionFor(f):
		mb.settle(cl, nil, rtupacket.DecodeException(f))
	default:
		if err := rtupacket.Match(f, cl.expect); err != nil {
			mb.logger.Warn("response does not match request", "frame", f.String(), "error", err)
			mb.settle(cl, nil, err)
			return
		}
		mb.logger.Debug("response matched", "frame", f.String(), "elapsed", time.Since(cl.started))
		mb.settle(cl, f, nil)
	}
}

// ReadCoils reads quantity coils of slaveID starting at address.
func (mb *Client) ReadCoils(ctx context.Context, slaveID byte, address, quantity uint16) ([]bool, error) {
	return mb.readBits(ctx, rtupacket.NewReadCoils(slaveID, address, quantity))
}

// ReadDiscreteInputs reads quantity discrete inputs of slaveID starting at address.
func (mb *Client) ReadDiscreteInputs(ctx context.Context, slaveID byte, address, quantity uint16) ([]bool, error) {
	return mb.readBits(ctx, rtupacket.NewReadDiscreteInputs(slaveID, address, quantity))
}

// ReadHoldingRegisters reads quantity holding registers of slaveID starting at address.
func (mb *Client) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	return mb.readRegisters(ctx, rtupacket.NewReadHoldingRegisters(slaveID, address, quantity))
}

// ReadInputRegisters reads quantity input registers of slaveID starting at address.
func (mb *Client) ReadInputRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	return mb.readRegisters(ctx, rtupacket.NewReadInputRegisters(slaveID, address, quantity))
}

// WriteSingleCoil switches one coil of slaveID on or off.
func (mb *Client) WriteSingleCoil(ctx context.Context, slaveID byte, address uint16, state bool) (rtupacket.CoilWrite, error) {
	f, err := mb.Send(ctx, rtupacket.NewWriteSingleCoil(slaveID, address, state))
	if err != nil {
		return rtupacket.CoilWrite{}, err
	}
	return rtupacket.DecodeCoilWrite(f)
}

// WriteSingleRegister writes one holding register of slaveID.
func (mb *Client) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) (rtupacket.RegisterWrite, error) {
	f, err := mb.Send(ctx, rtupacket.NewWriteSingleRegister(slaveID, address, value))
	if err != nil {
		return rtupacket.RegisterWrite{}, err
	}
	return rtupacket.DecodeRegisterWrite(f)
}

// WriteMultipleCoils writes consecutive coils of slaveID starting at address.
func (mb *Client) WriteMultipleCoils(ctx context.Context, slaveID byte, address uint16, values []bool) (rtupacket.MultipleWrite, error) {
	f, err := mb.Send(ctx, rtupacket.NewWriteMultipleCoils(slaveID, address, values))
	if err != nil {
		return rtupacket.MultipleWrite{}, err
	}
	return rtupacket.DecodeMultipleWrite(f)
}

// WriteMultipleRegisters writes consecutive holding registers of slaveID starting at address.
func (mb *Client) WriteMultipleRegisters(ctx context.Context, slaveID byte, address uint16, values []uint16) (rtupacket.MultipleWrite, error) {
	f, err := mb.Send(ctx, rtupacket.NewWriteMultipleRegisters(slaveID, address, values))
	if err != nil {
		return rtupacket.MultipleWrite{}, err
	}
	return rtupacket.DecodeMultipleWrite(f)
}

func (mb *Client) readBits(ctx context.Context, req *rtupacket.Request) ([]bool, error) {
	f, err := mb.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	bits, err := rtupacket.DecodeBits(f)
	if err != nil {
		return nil, err
	}
	if int(req.Quantity) < len(bits) {
		bits = bits[:req.Quantity]
	}
	return bits, nil
}

func (mb *Client) readRegisters(ctx context.Context, req *rtupacket.Request) ([]uint16, error) {
	f, err := mb.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return rtupacket.DecodeRegisters(f)
}
