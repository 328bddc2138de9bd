// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package metrics exposes Prometheus collectors for the request correlator.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	RequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbus_master_requests_total",
		Help: "The total number of settled requests by outcome",
	}, []string{"link", "function", "outcome"})

	ChecksumFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbus_master_checksum_faults_total",
		Help: "The total number of received frames with a bad CRC",
	}, []string{"link"})

	// Histograms
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modbus_master_request_duration_seconds",
		Help:    "Time from dispatch to settlement of a request",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"link", "function"})

	// Gauges
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modbus_master_queue_depth",
		Help: "The number of requests waiting for dispatch",
	}, []string{"link"})
)

// Outcome constants
const (
	OutcomeSuccess    = "success"
	OutcomeTimeout    = "timeout"
	OutcomeChecksum   = "checksum"
	OutcomeUnexpected = "unexpected"
	OutcomeException  = "exception"
	OutcomeSaturated  = "saturated"
	OutcomeCanceled   = "canceled"
	OutcomeWriteError = "write_error"
)

// Outcome classifies the result of a request.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, modbus.ErrRequestTimedOut):
		return OutcomeTimeout
	case errors.Is(err, modbus.ErrChecksum):
		return OutcomeChecksum
	case errors.Is(err, modbus.ErrUnexpectedResponse):
		return OutcomeUnexpected
	case errors.Is(err, modbus.ErrException):
		return OutcomeException
	case errors.Is(err, modbus.ErrQueueSaturated):
		return OutcomeSaturated
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeWriteError
	}
}

// ObserveRequest records a settled request.
func ObserveRequest(link string, funcCode byte, err error, elapsed time.Duration) {
	function := modbus.FunctionName(funcCode)
	RequestCount.WithLabelValues(link, function, Outcome(err)).Inc()
	if elapsed > 0 {
		RequestDuration.WithLabelValues(link, function).Observe(elapsed.Seconds())
	}
}

// IncChecksumFault increments the checksum fault counter.
func IncChecksumFault(link string) {
	ChecksumFaults.WithLabelValues(link).Inc()
}

// SetQueueDepth sets the number of waiting requests.
func SetQueueDepth(link string, depth int) {
	QueueDepth.WithLabelValues(link).Set(float64(depth))
}
