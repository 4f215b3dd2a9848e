package transport

import (
	"errors"
	"fmt"
)

// Common errors for netcore transport entities
var (
	// ErrEntityStarted indicates the entity is already started
	ErrEntityStarted = errors.New("entity already started")

	// ErrEntityNotStarted indicates the entity has not been started
	ErrEntityNotStarted = errors.New("entity not started")

	// ErrIONotStarted indicates a write arrived before the connection's
	// I/O was marked started
	ErrIONotStarted = errors.New("io not started")

	// ErrConnClosed indicates the connection has been closed
	ErrConnClosed = errors.New("connection closed")

	// ErrFrameTooLarge indicates a peer sent a frame above the size cap
	ErrFrameTooLarge = errors.New("frame exceeds size limit")

	// ErrNoPeerKey indicates no static key is registered for the peer
	ErrNoPeerKey = errors.New("no noise key registered for peer")

	// ErrSessionNotFound indicates no complete noise session with the peer
	ErrSessionNotFound = errors.New("noise session not found for peer")
)

// NetError represents a transport error with operation and address context.
type NetError struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *NetError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("netcore %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("netcore %s: %v", e.Op, e.Err)
}

func (e *NetError) Unwrap() error {
	return e.Err
}

// newNetError creates a new NetError
func newNetError(op, addr string, err error) *NetError {
	return &NetError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
