package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueueFIFOOrder tests that elements pop in push order on a quiescent queue.
func TestQueueFIFOOrder(t *testing.T) {
	q := New[int]()

	for i := 1; i <= 5; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())
	assert.False(t, q.Empty())

	for i := 1; i <= 5; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.Empty())
}

// TestQueueProducerConsumer tests cross-goroutine handoff preserving order.
func TestQueueProducerConsumer(t *testing.T) {
	q := New[int]()

	go func() {
		for i := 1; i <= 5; i++ {
			q.Push(i)
		}
	}()

	for i := 1; i <= 5; i++ {
		v, ok := q.WaitAndPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

// TestQueueCloseWakesWaiters tests that Close unblocks all waiting consumers.
func TestQueueCloseWakesWaiters(t *testing.T) {
	q := New[string]()

	const waiters = 4
	var wg sync.WaitGroup
	results := make(chan bool, waiters)

	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_, ok := q.WaitAndPop()
			results <- ok
		}()
	}

	// Give the waiters a moment to block on the condition.
	time.Sleep(50 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(results)

	for ok := range results {
		assert.False(t, ok, "waiters on an empty closed queue must see no value")
	}
}

// TestQueueCloseDrain tests that elements present at close time remain poppable.
func TestQueueCloseDrain(t *testing.T) {
	q := New[int]()
	for i := 1; i <= 3; i++ {
		require.True(t, q.Push(i))
	}

	q.Close()
	assert.True(t, q.Closed())
	assert.False(t, q.Push(99), "push on a closed queue must fail")
	assert.Equal(t, 3, q.Len(), "failed push must not change the queue")

	for i := 1; i <= 3; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.TryPop()
	assert.False(t, ok)

	// After the backlog is drained, a blocking pop returns immediately.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := q.WaitAndPop()
		assert.False(t, ok)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAndPop blocked on a closed, drained queue")
	}
}

// TestQueueCloseIdempotent tests that repeated Close calls are harmless.
func TestQueueCloseIdempotent(t *testing.T) {
	q := New[int]()
	q.Close()
	q.Close()
	assert.True(t, q.Closed())
}

// TestQueueReopen tests that Open re-enables pushes without clearing elements.
func TestQueueReopen(t *testing.T) {
	q := New[int]()
	require.True(t, q.Push(1))
	q.Close()
	require.False(t, q.Push(2))

	q.Open()
	assert.False(t, q.Closed())
	require.True(t, q.Push(3))

	v, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, v, "reopening must not discard existing elements")
	v, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

// TestQueueTryPopEmpty tests that TryPop on an empty queue never blocks.
func TestQueueTryPopEmpty(t *testing.T) {
	q := New[int]()
	v, ok := q.TryPop()
	assert.False(t, ok)
	assert.Zero(t, v)
}

// TestQueueApply tests visitor iteration in FIFO order.
func TestQueueApply(t *testing.T) {
	q := New[int]()
	for i := 10; i <= 30; i += 10 {
		require.True(t, q.Push(i))
	}

	var seen []int
	q.Apply(func(v int) {
		seen = append(seen, v)
	})
	assert.Equal(t, []int{10, 20, 30}, seen)
	assert.Equal(t, 3, q.Len(), "Apply must not consume elements")
}

// TestQueueApplyBulkTransfer tests the documented Apply+Push bulk-copy path.
func TestQueueApplyBulkTransfer(t *testing.T) {
	src := New[int]()
	dst := New[int]()
	for i := 1; i <= 4; i++ {
		require.True(t, src.Push(i))
	}

	src.Apply(func(v int) {
		dst.Push(v)
	})

	for i := 1; i <= 4; i++ {
		v, ok := dst.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

// TestQueueConcurrentProducersConsumers stresses the queue with many
// goroutines on both sides and checks that every pushed value arrives
// exactly once.
func TestQueueConcurrentProducersConsumers(t *testing.T) {
	const (
		producers   = 8
		consumers   = 8
		perProducer = 200
		totalValues = producers * perProducer
	)

	q := New[int]()

	var producerWG sync.WaitGroup
	producerWG.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer producerWG.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}(p * perProducer)
	}

	var mu sync.Mutex
	seen := make(map[int]int, totalValues)
	var consumerWG sync.WaitGroup
	consumerWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumerWG.Done()
			for {
				v, ok := q.WaitAndPop()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}

	producerWG.Wait()
	// Let consumers drain, then close to release them.
	for !q.Empty() {
		time.Sleep(time.Millisecond)
	}
	q.Close()
	consumerWG.Wait()

	require.Len(t, seen, totalValues)
	for v, count := range seen {
		assert.Equal(t, 1, count, "value %d consumed %d times", v, count)
	}
}

// TestQueueRingBufferBacked tests a queue over fixed-capacity storage.
func TestQueueRingBufferBacked(t *testing.T) {
	q := NewWithBuffer[int](NewRingBuffer[int](4))

	for i := 1; i <= 4; i++ {
		require.True(t, q.Push(i))
	}
	// A fifth push overwrites the oldest element.
	require.True(t, q.Push(5))
	assert.Equal(t, 4, q.Len())

	for want := 2; want <= 5; want++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}
