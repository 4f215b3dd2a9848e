// Package queue provides a multi-reader, multi-writer blocking FIFO for
// transferring data between goroutines.
//
// A Queue has explicit close semantics: closing wakes every blocked reader
// and causes subsequent pushes to fail, while elements already queued remain
// poppable until drained. A closed queue can be reopened for reuse.
//
// The backing storage is pluggable through the Buffer interface, so callers
// that cannot tolerate steady-state allocation may back a Queue with a
// fixed-capacity RingBuffer instead of the default growable SliceBuffer.
//
// Example:
//
//	q := queue.New[int]()
//
//	go func() {
//	    for i := 1; i <= 5; i++ {
//	        q.Push(i)
//	    }
//	    q.Close()
//	}()
//
//	for {
//	    v, ok := q.WaitAndPop()
//	    if !ok {
//	        break // closed and drained
//	    }
//	    fmt.Println(v)
//	}
package queue
