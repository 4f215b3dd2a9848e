package transport

import (
	"errors"
	"testing"
)

// TestNetErrorFormat tests error string formatting with and without an
// address.
func TestNetErrorFormat(t *testing.T) {
	withAddr := newNetError("send", "127.0.0.1:33445", ErrConnClosed)
	if withAddr.Error() != "netcore send 127.0.0.1:33445: connection closed" {
		t.Errorf("Unexpected message: %q", withAddr.Error())
	}

	withoutAddr := newNetError("listen", "", ErrEntityStarted)
	if withoutAddr.Error() != "netcore listen: entity already started" {
		t.Errorf("Unexpected message: %q", withoutAddr.Error())
	}
}

// TestNetErrorUnwrap tests that errors.Is sees through the wrapper.
func TestNetErrorUnwrap(t *testing.T) {
	err := newNetError("send", "10.0.0.1:1", ErrIONotStarted)
	if !errors.Is(err, ErrIONotStarted) {
		t.Error("Expected errors.Is to match the wrapped sentinel")
	}
	if errors.Is(err, ErrConnClosed) {
		t.Error("Unexpected sentinel match")
	}
}
