// ============================================================================
// TaskGrid Ready Queue - Bounded MPMC FIFO
// ============================================================================
//
// Package: internal/readyqueue
// Purpose: The single shared queue between job submitters and the worker pool
//
// Contract:
//   - Push: enqueue at the tail. A full queue is backpressure, not an error;
//     the pusher spins with a scheduler yield until room appears. Pushers are
//     either workers (which must never park, or the pool can deadlock) or
//     submitters (which are already rate-limited by record-pool exhaustion).
//   - PopBlocking: dequeue from the head, parking on the monitor while empty.
//   - SignalShutdown: one-way flag; all present and future PopBlocking calls
//     drain with ok=false once it is set.
//
// Ordering:
//   FIFO across all producers and consumers. There is no per-producer
//   ordering guarantee; two concurrent pushers land in whichever order they
//   take the lock.
//
// The buffer is a lock-guarded ring. A CAS-based ring would pop a few
// nanoseconds faster, but every pop here precedes the execution of an
// arbitrary job body, so the lock is nowhere near the critical path.
//
// ============================================================================

// Package readyqueue provides the bounded blocking FIFO between submitters
// and workers.
package readyqueue

import (
	"runtime"

	"github.com/ChuLiYu/taskgrid/internal/monitor"
)

// Queue is a fixed-capacity FIFO safe for concurrent producers and
// consumers.
type Queue[T any] struct {
	mon      *monitor.Monitor
	buf      []T
	head     int
	count    int
	shutdown bool
}

// New creates a queue with the given capacity. Capacity must be at least 1.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		mon: monitor.New(),
		buf: make([]T, capacity),
	}
}

// Push appends item to the tail. If the queue is full it spins, yielding the
// processor between attempts, until a slot opens. It returns false if the
// queue was shut down before the item could be enqueued; the item is dropped
// in that case.
func (q *Queue[T]) Push(item T) bool {
	for {
		q.mon.Lock()
		if q.shutdown {
			q.mon.Unlock()
			return false
		}
		if q.count < len(q.buf) {
			q.buf[(q.head+q.count)%len(q.buf)] = item
			q.count++
			q.mon.Broadcast()
			q.mon.Unlock()
			return true
		}
		q.mon.Unlock()
		runtime.Gosched()
	}
}

// PopBlocking removes and returns the oldest item, blocking while the queue
// is empty. It returns ok=false once the queue has been shut down; items
// already enqueued at shutdown time are not delivered.
func (q *Queue[T]) PopBlocking() (item T, ok bool) {
	q.mon.Lock()
	defer q.mon.Unlock()

	for q.count == 0 && !q.shutdown {
		q.mon.Wait()
	}
	if q.shutdown {
		return item, false
	}

	item = q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return item, true
}

// SignalShutdown sets the one-way termination flag and wakes every blocked
// popper. Subsequent pushes fail and subsequent pops drain immediately.
func (q *Queue[T]) SignalShutdown() {
	q.mon.Lock()
	q.shutdown = true
	q.mon.Broadcast()
	q.mon.Unlock()
}

// Len reports the number of items currently enqueued.
func (q *Queue[T]) Len() int {
	q.mon.Lock()
	defer q.mon.Unlock()
	return q.count
}

// Cap reports the fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}
