package queue

import "sync"

// noCopy flags accidental copies of a Queue to go vet. A queue's mutex and
// set of waiting goroutines cannot be meaningfully duplicated.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Queue is a thread-safe FIFO for handing values between goroutines.
// Any number of producers may Push while any number of consumers pop;
// when a value is pushed, exactly one waiting consumer is woken.
//
// A Queue must be created with New or NewWithBuffer and must not be copied
// after first use. To move the contents of one queue into another, visit
// them with Apply and Push into the target.
type Queue[T any] struct {
	noCopy noCopy

	mu     sync.Mutex
	cond   *sync.Cond
	buf    Buffer[T]
	closed bool
}

// New creates an open queue backed by a growable SliceBuffer.
func New[T any]() *Queue[T] {
	return NewWithBuffer[T](NewSliceBuffer[T]())
}

// NewWithBuffer creates an open queue backed by the supplied storage.
// The queue takes sole ownership of buf; any elements it already holds
// become the initial contents of the queue.
func NewWithBuffer[T any](buf Buffer[T]) *Queue[T] {
	q := &Queue[T]{buf: buf}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a value and wakes one waiting consumer. It returns false,
// leaving the queue unchanged, if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.buf.PushBack(v)
	q.cond.Signal()
	return true
}

// WaitAndPop blocks until an element is available or the queue is closed.
// It returns the oldest element, or the zero value and false if the queue
// was closed and no elements remain.
func (q *Queue[T]) WaitAndPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.buf.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.buf.PopFront()
}

// TryPop returns the oldest element if one is immediately available.
// It never blocks and works on closed queues, which lets consumers drain
// remaining elements after Close.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.PopFront()
}

// Close marks the queue closed and wakes every blocked consumer. Elements
// already queued are not discarded; they remain poppable. Closing an
// already-closed queue is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Open re-enables pushes on a previously closed queue. The initial state
// of a queue is open. Opening an open queue is a no-op.
func (q *Queue[T]) Open() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = false
}

// Apply calls f for every current element in FIFO order while holding the
// queue's lock. It is the sanctioned way to inspect or bulk-copy contents
// without exposing iterators. The visitor must not mutate elements and
// must not call back into the queue, which would deadlock.
func (q *Queue[T]) Apply(f func(v T)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf.Do(f)
}

// Len returns the number of queued elements at the time of the call.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len()
}

// Empty reports whether the queue held no elements at the time of the call.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Closed reports whether the queue was closed at the time of the call.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
