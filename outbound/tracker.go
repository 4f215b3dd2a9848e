// Package outbound tracks per-connection output state so that exactly one
// write is ever outstanding on a connection at a time.
//
// Writes may arrive from any goroutine. The first write accepted while the
// connection is idle is issued directly by its caller; every write arriving
// while one is in flight is appended to an ordered backlog. After each write
// completes, the I/O goroutine drains the backlog one element at a time via
// NextElement until it reports empty.
package outbound

import (
	"net"
	"sync"

	"github.com/opd-ai/netcore/queue"
)

// Element is one queued write: the payload plus an optional destination
// endpoint (used by datagram transports; nil for stream connections).
type Element struct {
	Payload []byte
	Dest    net.Addr
}

// Stats is a point-in-time snapshot of the backlog, for observability and
// caller-side backpressure decisions.
type Stats struct {
	// QueueSize is the number of writes waiting in the backlog.
	QueueSize int
	// QueuedBytes is the sum of the backlog payload lengths. Destination
	// metadata is not counted.
	QueuedBytes uint64
}

// Tracker owns the write-pacing state for one connection or association.
// All methods are safe for concurrent use; a single mutex serializes
// producers calling StartWriteSetup against the I/O goroutine calling
// NextElement, so the single-write-in-flight invariant holds regardless of
// call interleaving.
//
// The zero value is ready to use, with I/O not yet marked started.
type Tracker struct {
	mu              sync.Mutex
	ioStarted       bool
	writeInProgress bool
	backlog         queue.SliceBuffer[Element]
	queuedBytes     uint64
}

// NewTracker creates a tracker for a newly constructed I/O handler.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetIOStarted marks the connection's I/O as started, enabling writes.
// It returns false if I/O was already started.
func (t *Tracker) SetIOStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ioStarted {
		return false
	}
	t.ioStarted = true
	return true
}

// IOStarted reports whether I/O has been marked started.
func (t *Tracker) IOStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ioStarted
}

// WriteInProgress reports whether a write is currently outstanding.
func (t *Tracker) WriteInProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeInProgress
}

// StartWriteSetup registers intent to write payload, optionally to dest.
//
// It returns true when the caller must issue the write itself, immediately:
// no write was in flight, and the payload has not been enqueued. It returns
// false in two cases: I/O has not been started (the request is dropped), or
// another write is in flight, in which case the payload has been appended to
// the backlog and will be handed out by a later NextElement call. Empty
// payloads are legal and are queued and counted like any other.
func (t *Tracker) StartWriteSetup(payload []byte, dest net.Addr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ioStarted {
		return false
	}
	if t.writeInProgress {
		t.backlog.PushBack(Element{Payload: payload, Dest: dest})
		t.queuedBytes += uint64(len(payload))
		return false
	}
	t.writeInProgress = true
	return true
}

// NextElement is called by the I/O goroutine after a write completes. If the
// backlog is non-empty it returns the oldest entry and leaves the
// write-in-progress flag set: the caller must issue that write next. If the
// backlog is empty it clears write-in-progress and returns false, telling
// the caller to stop issuing writes until StartWriteSetup next returns true.
func (t *Tracker) NextElement() (Element, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elem, ok := t.backlog.PopFront()
	if !ok {
		t.writeInProgress = false
		return Element{}, false
	}
	t.queuedBytes -= uint64(len(elem.Payload))
	return elem, true
}

// Stats returns a snapshot of the backlog depth and byte count.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		QueueSize:   t.backlog.Len(),
		QueuedBytes: t.queuedBytes,
	}
}
