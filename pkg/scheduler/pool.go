// ============================================================================
// TaskGrid Scheduler - Job Record Pool
// ============================================================================
//
// Package: pkg/scheduler
// File: pool.go
// Purpose: Fixed-capacity free-list of job records
//
// Exhaustion Policy:
//   allocate() with an empty free-list spins with a scheduler yield until a
//   worker retires something. The caller is application code that has
//   submitted more work than the scheduler was sized to track; making it
//   wait is the backpressure, not an error. Workers never allocate, so the
//   spin cannot deadlock the pool itself.
//
// Generation Invariant:
//   release() advances the record's generation by two (parity stays even).
//   Between two successful allocations of the same slot the generation
//   therefore advances by at least two, and any handle minted for the
//   earlier incarnation compares unequal forever after.
//
// Completion Monitors:
//   Records share a small stripe of monitors rather than owning one each; a
//   completion broadcast wakes every waiter on the stripe and each rechecks
//   its own handle. Waits are rare relative to retirements, so the sharing
//   costs spurious wakeups but saves a mutex+channel per record.
//
// ============================================================================

package scheduler

import (
	"runtime"
	"sync"

	"github.com/ChuLiYu/taskgrid/internal/atomicx"
	"github.com/ChuLiYu/taskgrid/internal/monitor"
)

// monitorStripes is the number of completion monitors shared across the
// pool. Must be a power of two.
const monitorStripes = 16

// recordPool is the fixed array of job records plus its free-list.
type recordPool struct {
	records  []jobRecord
	monitors [monitorStripes]*monitor.Monitor

	mu   sync.Mutex
	free []uint32 // LIFO stack of free indices
}

// newRecordPool creates a pool of capacity records, all Free, owned by m.
func newRecordPool(capacity int, m *Manager) *recordPool {
	p := &recordPool{
		records: make([]jobRecord, capacity),
		free:    make([]uint32, 0, capacity),
	}
	for i := range p.monitors {
		p.monitors[i] = monitor.New()
	}
	for i := range p.records {
		rec := &p.records[i]
		rec.index = uint32(i)
		rec.state = stateFree
		rec.mon = p.monitors[i%monitorStripes]
		rec.owner = m
	}
	// Push in reverse so low indices allocate first; keeps small tests
	// deterministic about which slot they exercise.
	for i := capacity - 1; i >= 0; i-- {
		p.free = append(p.free, uint32(i))
	}
	return p
}

// allocate returns a record in Configuring state, spinning with a yield
// while the pool is exhausted.
func (p *recordPool) allocate() *jobRecord {
	for {
		p.mu.Lock()
		if n := len(p.free); n > 0 {
			idx := p.free[n-1]
			p.free = p.free[:n-1]
			p.mu.Unlock()

			rec := &p.records[idx]
			rec.resetForConfigure()
			return rec
		}
		p.mu.Unlock()
		runtime.Gosched()
	}
}

// allocateBatch fills dst with records in Configuring state. It takes as
// many as are free under a single free-list transaction and spins for the
// remainder, which is what makes bulk submission cheaper than n individual
// allocations.
func (p *recordPool) allocateBatch(dst []*jobRecord) {
	got := 0
	for got < len(dst) {
		p.mu.Lock()
		for got < len(dst) && len(p.free) > 0 {
			n := len(p.free)
			idx := p.free[n-1]
			p.free = p.free[:n-1]
			dst[got] = &p.records[idx]
			got++
		}
		p.mu.Unlock()
		if got < len(dst) {
			runtime.Gosched()
		}
	}
	for _, rec := range dst {
		rec.resetForConfigure()
	}
}

// release retires a record back to the free-list: the generation advances by
// two and the record becomes allocatable again. All handles minted for the
// old generation are stale from this point on.
func (p *recordPool) release(rec *jobRecord) {
	atomicx.AddUint32(&rec.generation, 2)
	atomicx.StoreInt32(&rec.state, stateFree)

	p.mu.Lock()
	p.free = append(p.free, rec.index)
	p.mu.Unlock()
}

// get returns the record at index. Index validity is the caller's problem;
// successor references only ever hold indices this pool minted.
func (p *recordPool) get(index uint32) *jobRecord {
	return &p.records[index]
}

// freeCount reports how many records are currently allocatable.
func (p *recordPool) freeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// capacity reports the fixed pool size.
func (p *recordPool) capacity() int {
	return len(p.records)
}
