// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{&modbus.TimeoutError{Timeout: time.Second}, OutcomeTimeout},
		{&modbus.ChecksumError{}, OutcomeChecksum},
		{fmt.Errorf("send: %w", &modbus.UnexpectedResponseError{Field: "address"}), OutcomeUnexpected},
		{&modbus.ExceptionError{FunctionCode: 3, Code: 2}, OutcomeException},
		{modbus.ErrQueueSaturated, OutcomeSaturated},
		{context.Canceled, OutcomeCanceled},
		{errors.New("write: broken pipe"), OutcomeWriteError},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestObserveRequest(t *testing.T) {
	counter := RequestCount.WithLabelValues("metrics-test", "read_coils", OutcomeSuccess)
	before := testutil.ToFloat64(counter)

	ObserveRequest("metrics-test", modbus.FuncCodeReadCoils, nil, 10*time.Millisecond)
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("requests_total = %v, want %v", got, before+1)
	}

	IncChecksumFault("metrics-test")
	if got := testutil.ToFloat64(ChecksumFaults.WithLabelValues("metrics-test")); got != 1 {
		t.Errorf("checksum_faults_total = %v, want 1", got)
	}

	SetQueueDepth("metrics-test", 3)
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("metrics-test")); got != 3 {
		t.Errorf("queue_depth = %v, want 3", got)
	}
}
