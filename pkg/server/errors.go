package server

import (
	"errors"
	"fmt"

	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// Sentinel errors for common transport error conditions.
var (
	// ErrQueueFull is returned when a Message action is dropped because the
	// action queue is at capacity.
	ErrQueueFull = errors.New("server: action queue full")

	// ErrQueueStopped is returned when pushing to a queue that was stopped.
	ErrQueueStopped = errors.New("server: action queue stopped")

	// ErrConnectionClosed is returned when writing to a closed connection.
	ErrConnectionClosed = errors.New("server: connection closed")

	// ErrAlreadyBound is returned when Bind races another Bind.
	ErrAlreadyBound = errors.New("server: already bound")
)

// ConnError wraps an error with connection context for debugging.
type ConnError struct {
	ConnID transport.ConnID
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	if e.ConnID == 0 {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: %s: %s: %v", e.ConnID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// NewConnError creates a new ConnError.
func NewConnError(id transport.ConnID, op string, err error) *ConnError {
	return &ConnError{
		ConnID: id,
		Op:     op,
		Err:    err,
	}
}
