package queue

// Buffer is the minimal FIFO capability set required to back a Queue.
// Implementations are not safe for concurrent use on their own; the Queue
// serializes all access under its lock.
type Buffer[T any] interface {
	// PushBack appends an element at the tail.
	PushBack(v T)

	// PopFront removes and returns the oldest element. The second return
	// value is false when the buffer is empty.
	PopFront() (T, bool)

	// Len returns the number of stored elements.
	Len() int

	// Do calls f for every stored element in FIFO order.
	Do(f func(v T))
}

// SliceBuffer is the default growable Buffer implementation.
type SliceBuffer[T any] struct {
	elems []T
}

// NewSliceBuffer creates an empty growable buffer.
func NewSliceBuffer[T any]() *SliceBuffer[T] {
	return &SliceBuffer[T]{}
}

// PushBack appends an element at the tail.
func (b *SliceBuffer[T]) PushBack(v T) {
	b.elems = append(b.elems, v)
}

// PopFront removes and returns the oldest element, or false if empty.
func (b *SliceBuffer[T]) PopFront() (T, bool) {
	var zero T
	if len(b.elems) == 0 {
		return zero, false
	}
	v := b.elems[0]
	b.elems[0] = zero // release the reference for GC
	b.elems = b.elems[1:]
	if len(b.elems) == 0 {
		b.elems = nil // reset backing array once drained
	}
	return v, true
}

// Len returns the number of stored elements.
func (b *SliceBuffer[T]) Len() int {
	return len(b.elems)
}

// Do calls f for every stored element in FIFO order.
func (b *SliceBuffer[T]) Do(f func(v T)) {
	for _, v := range b.elems {
		f(v)
	}
}

// RingBuffer is a fixed-capacity Buffer that performs no allocation after
// construction. When full, PushBack overwrites the oldest element, so the
// buffer always holds the most recent Cap elements.
type RingBuffer[T any] struct {
	elems []T
	head  int
	count int
}

// NewRingBuffer creates a ring buffer holding at most capacity elements.
// A capacity below one is raised to one.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{elems: make([]T, capacity)}
}

// Cap returns the fixed capacity of the ring buffer.
func (b *RingBuffer[T]) Cap() int {
	return len(b.elems)
}

// PushBack appends an element at the tail, overwriting the oldest element
// if the buffer is full.
func (b *RingBuffer[T]) PushBack(v T) {
	if b.count == len(b.elems) {
		b.elems[b.head] = v
		b.head = (b.head + 1) % len(b.elems)
		return
	}
	b.elems[(b.head+b.count)%len(b.elems)] = v
	b.count++
}

// PopFront removes and returns the oldest element, or false if empty.
func (b *RingBuffer[T]) PopFront() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	v := b.elems[b.head]
	b.elems[b.head] = zero
	b.head = (b.head + 1) % len(b.elems)
	b.count--
	return v, true
}

// Len returns the number of stored elements.
func (b *RingBuffer[T]) Len() int {
	return b.count
}

// Do calls f for every stored element in FIFO order.
func (b *RingBuffer[T]) Do(f func(v T)) {
	for i := 0; i < b.count; i++ {
		f(b.elems[(b.head+i)%len(b.elems)])
	}
}
