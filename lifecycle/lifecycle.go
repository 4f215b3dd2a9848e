// Package lifecycle manages the start/stop state shared by every network
// entity type: a listening acceptor, an outbound connector, or a UDP
// association handler.
//
// Start and stop are compare-and-set transitions, so concurrent calls from
// any number of goroutines resolve to exactly one winner. A successful start
// installs a shutdown callback that the transport layer invokes exactly once
// per cycle when it observes the handler terminating, whether by error or by
// clean shutdown.
package lifecycle

import (
	"sync"
	"sync/atomic"
)

// ShutdownFunc is the notification installed by Start and invoked by the
// transport when a handler terminates. It receives the handler reference,
// the terminating error (nil for a clean shutdown), and the total bytes
// transferred over the handler's lifetime.
//
// The callback must not block indefinitely and must not synchronously
// re-enter Start or Stop on the same State in a way that could deadlock the
// transport's completion path.
type ShutdownFunc[H any] func(h H, err error, bytes uint64)

// State is the lifecycle flag plus shutdown callback for one network
// entity, parameterized over the handler reference type passed back through
// the callback. The zero value is a stopped entity with no callback.
//
// Start, Stop, and IsStarted may be called concurrently from any goroutine.
type State[H any] struct {
	started atomic.Bool

	mu       sync.Mutex
	shutdown ShutdownFunc[H]
}

// IsStarted reports whether the entity is currently started. The state may
// change immediately after the read; the result is only a snapshot.
func (s *State[H]) IsStarted() bool {
	return s.started.Load()
}

// Start transitions the entity from stopped to started. Exactly one of any
// number of concurrent Start calls succeeds; the winner's shutdown callback
// is installed and true is returned. Losers get false and leave any
// previously installed callback untouched.
func (s *State[H]) Start(fn ShutdownFunc[H]) bool {
	if !s.started.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	s.shutdown = fn
	s.mu.Unlock()
	return true
}

// Stop transitions the entity from started to stopped, returning false if
// it was not started. Stop is a state request only: it never invokes the
// shutdown callback, which is driven by the transport observing actual I/O
// termination.
func (s *State[H]) Stop() bool {
	return s.started.CompareAndSwap(true, false)
}

// InvokeShutdown calls the installed shutdown callback with the handler
// reference, terminating error, and lifetime byte count. It is called by
// the transport layer, never by application code, and at most once per
// completed start/stop cycle.
//
// Precondition: a callback was installed by a successful Start. Invoking
// with no callback installed is a programming error in the transport.
// The callback runs with no internal lock held, so it may safely query
// this State.
func (s *State[H]) InvokeShutdown(h H, err error, bytes uint64) {
	s.mu.Lock()
	fn := s.shutdown
	s.mu.Unlock()
	fn(h, err, bytes)
}
