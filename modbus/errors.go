// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientData is returned by decoders when the buffer does not yet
	// hold a complete frame. It is a wait signal, not a failure.
	ErrInsufficientData = errors.New("modbus: insufficient data")

	ErrChecksum           = errors.New("modbus: crc mismatch")
	ErrUnexpectedResponse = errors.New("modbus: unexpected response")
	ErrRequestTimedOut    = errors.New("modbus: request timed out")
	ErrQueueSaturated     = errors.New("modbus: request queue saturated")
	ErrException          = errors.New("modbus: exception response")
	ErrUnsupportedFunc    = errors.New("modbus: unsupported function code")
)

// ChecksumError reports a frame whose CRC trailer disagrees with the CRC
// computed over its payload.
type ChecksumError struct {
	Expected uint16 // computed over the payload
	Actual   uint16 // read from the trailer
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("modbus: response crc '0x%04X' does not match expected '0x%04X'", e.Actual, e.Expected)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksum }

// UnexpectedResponseError reports a valid frame that does not match the
// pending request. Field names the first attribute that disagreed.
type UnexpectedResponseError struct {
	Field string
	Want  int
	Got   int
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("modbus: unexpected response: %s is %d, expected %d", e.Field, e.Got, e.Want)
}

func (e *UnexpectedResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }

// TimeoutError reports that no matching frame arrived before the deadline.
type TimeoutError struct {
	SlaveID      byte
	FunctionCode byte
	Timeout      time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("modbus: request timed out after %v (slave %d, function 0x%02X)", e.Timeout, e.SlaveID, e.FunctionCode)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrRequestTimedOut }

// ExceptionError is an exception response from the addressed device.
type ExceptionError struct {
	FunctionCode byte // function code of the request, exception bit cleared
	Code         byte
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.Code, exceptionText(e.Code), e.FunctionCode)
}

func (e *ExceptionError) Is(target error) bool { return target == ErrException }

// UnsupportedFunctionError is returned when a frame carries a function code
// whose length rule is unknown.
type UnsupportedFunctionError struct {
	FunctionCode byte
}

func (e *UnsupportedFunctionError) Error() string {
	return fmt.Sprintf("modbus: unsupported function code: 0x%02X", e.FunctionCode)
}

func (e *UnsupportedFunctionError) Is(target error) bool { return target == ErrUnsupportedFunc }

// Exception codes
const (
	ExceptionCodeIllegalFunction                    = 1
	ExceptionCodeIllegalDataAddress                 = 2
	ExceptionCodeIllegalDataValue                   = 3
	ExceptionCodeServerDeviceFailure                = 4
	ExceptionCodeAcknowledge                        = 5
	ExceptionCodeServerDeviceBusy                   = 6
	ExceptionCodeMemoryParityError                  = 8
	ExceptionCodeGatewayPathUnavailable             = 10
	ExceptionCodeGatewayTargetDeviceFailedToRespond = 11
)

func exceptionText(code byte) string {
	switch code {
	case ExceptionCodeIllegalFunction:
		return "illegal function"
	case ExceptionCodeIllegalDataAddress:
		return "illegal data address"
	case ExceptionCodeIllegalDataValue:
		return "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		return "server device failure"
	case ExceptionCodeAcknowledge:
		return "acknowledge"
	case ExceptionCodeServerDeviceBusy:
		return "server device busy"
	case ExceptionCodeMemoryParityError:
		return "memory parity error"
	case ExceptionCodeGatewayPathUnavailable:
		return "gateway path unavailable"
	case ExceptionCodeGatewayTargetDeviceFailedToRespond:
		return "gateway target device failed to respond"
	default:
		return "unknown"
	}
}
