// Package hw holds the error taxonomy shared by the device drivers, the
// robot assembly and the command dispatcher.
package hw

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a hardware or command failure.
type ErrorCode string

// ErrorCode constants.
const (
	// CodeDeviceUnavailable means a bus or pin could not be opened or configured.
	CodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	// CodeTransport means a transfer on an already open bus or pin failed.
	CodeTransport ErrorCode = "TRANSPORT_ERROR"
	// CodeSafetyLatchTripped means the controller's EPO latch is set.
	CodeSafetyLatchTripped ErrorCode = "SAFETY_LATCH_TRIPPED"
	// CodeUnrecognizedCommand means a command path could not be mapped.
	CodeUnrecognizedCommand ErrorCode = "UNRECOGNIZED_COMMAND"
)

// Sentinels for use with errors.Is. Matching is by code only.
var (
	ErrDeviceUnavailable   = &Error{Code: CodeDeviceUnavailable}
	ErrTransport           = &Error{Code: CodeTransport}
	ErrSafetyLatchTripped  = &Error{Code: CodeSafetyLatchTripped}
	ErrUnrecognizedCommand = &Error{Code: CodeUnrecognizedCommand}
)

// Error is a device or command failure.
type Error struct {
	Code   ErrorCode
	Device string // e.g. "picoborg", "blinkt"
	Op     string // operation that failed
	Cause  error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Device != "" {
		msg += ": " + e.Device
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Unavailable wraps cause as a DEVICE_UNAVAILABLE error.
func Unavailable(device, op string, cause error) *Error {
	return &Error{Code: CodeDeviceUnavailable, Device: device, Op: op, Cause: cause}
}

// Transport wraps cause as a TRANSPORT_ERROR.
func Transport(device, op string, cause error) *Error {
	return &Error{Code: CodeTransport, Device: device, Op: op, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
