package monitor

import (
	"errors"
	"fmt"
)

// Kind categorizes monitor errors.
//
// Setup errors end the run as inconclusive. Protocol and decode errors are
// absorbed by the event loop: the event is dropped and processing goes on.
type Kind string

const (
	// KindSetup covers handle resolution, subscription and arming.
	KindSetup Kind = "SETUP"

	// KindProtocol covers RTI calls that fail while processing an event.
	KindProtocol Kind = "PROTOCOL"

	// KindDecode covers malformed attribute or parameter payloads.
	KindDecode Kind = "DECODE"
)

// Error is the single error type returned by monitor operations. The RTI's
// specific failure is kept in Err as a diagnostic detail.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the failing step, e.g. "resolve HLAfederateName".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsSetupError reports whether err is a setup failure.
// Uses errors.As to handle wrapped errors.
func IsSetupError(err error) bool {
	return hasKind(err, KindSetup)
}

// IsProtocolError reports whether err is a protocol failure.
func IsProtocolError(err error) bool {
	return hasKind(err, KindProtocol)
}

// IsDecodeError reports whether err is a decode failure.
func IsDecodeError(err error) bool {
	return hasKind(err, KindDecode)
}

func hasKind(err error, kind Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}

func setupError(op string, err error) *Error {
	return &Error{Kind: KindSetup, Op: op, Err: err}
}

func protocolError(op string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

func decodeError(op string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}
