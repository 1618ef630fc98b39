package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a connection error.
type ErrorType int

// Error type constants categorize errors for retry and termination decisions.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeSetup indicates a malformed address or configuration; never retried.
	ErrorTypeSetup
	// ErrorTypeConnectTimeout indicates the handshake did not complete in time.
	ErrorTypeConnectTimeout
	// ErrorTypeIdleTimeout indicates an open session produced no frame in time.
	ErrorTypeIdleTimeout
	// ErrorTypeRejected indicates the server refused the handshake.
	ErrorTypeRejected
	// ErrorTypeTransport indicates a send or receive failure.
	ErrorTypeTransport
	// ErrorTypeDecode indicates a data frame that does not match the message schema.
	ErrorTypeDecode
	// ErrorTypeHandler indicates the application handler failed to process a message.
	ErrorTypeHandler
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeSetup:
		return "SETUP"
	case ErrorTypeConnectTimeout:
		return "CONNECT_TIMEOUT"
	case ErrorTypeIdleTimeout:
		return "IDLE_TIMEOUT"
	case ErrorTypeRejected:
		return "REJECTED"
	case ErrorTypeTransport:
		return "TRANSPORT"
	case ErrorTypeDecode:
		return "DECODE"
	case ErrorTypeHandler:
		return "HANDLER"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors for common error conditions.
var (
	// ErrConnectTimeout is wrapped when the connect attempt exceeds its bound.
	ErrConnectTimeout = errors.New("connection timed out")
	// ErrIdleTimeout is wrapped when an open session stays silent too long.
	ErrIdleTimeout = errors.New("connection timed out while idle")
	// ErrInvalidAddress is wrapped when the target address cannot be used.
	ErrInvalidAddress = errors.New("invalid target address")
	// ErrSessionClosed is returned by writes on a session that was closed.
	ErrSessionClosed = errors.New("session is closed")
)

// ConnError describes one failed connection attempt or session.
type ConnError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// Op names the step that failed, e.g. "connect", "receive", "pong".
	Op string `json:"op"`
	// Message is the human-readable description shown to the user.
	Message string `json:"message"`
	// Terminal is set when the process should stop reconnecting.
	Terminal bool `json:"terminal"`
	// Err is the underlying cause.
	Err error `json:"-"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for ConnError.
func (e *ConnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// NewConnError creates a new ConnError. The timestamp is set to the current time.
func NewConnError(errorType ErrorType, op, message string, err error) *ConnError {
	return &ConnError{
		Type:      errorType,
		Op:        op,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// NewTerminalError creates a ConnError that ends the reconnect loop.
func NewTerminalError(errorType ErrorType, op, message string, err error) *ConnError {
	e := NewConnError(errorType, op, message, err)
	e.Terminal = true
	return e
}

// ErrorTypeOf returns the type of the first ConnError in err's chain.
func ErrorTypeOf(err error) ErrorType {
	var e *ConnError
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsTerminal returns true if err must end the reconnect loop.
// Setup errors are always terminal.
func IsTerminal(err error) bool {
	var e *ConnError
	if errors.As(err, &e) {
		return e.Terminal || e.Type == ErrorTypeSetup
	}
	return false
}

// IsRetryable returns true if another connection attempt should follow err.
func IsRetryable(err error) bool {
	return err != nil && !IsTerminal(err)
}

// IsTimeoutError returns true for connect and idle timeouts.
func IsTimeoutError(err error) bool {
	t := ErrorTypeOf(err)
	return t == ErrorTypeConnectTimeout || t == ErrorTypeIdleTimeout
}

// IsDecodeError returns true if err was caused by a malformed data frame.
func IsDecodeError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeDecode
}
