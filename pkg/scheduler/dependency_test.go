package scheduler

// ============================================================================
// Dependency Fan-In / Fan-Out and Saturation Tests
// Purpose: Verify barrier ordering under contention across pool geometries
// ============================================================================

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// runCounterTest submits jobs counter-increment jobs and waits on every
// handle in submission order.
func runCounterTest(t *testing.T, workers, ready, pool, jobs int) {
	t.Helper()
	mgr := newTestManager(t, workers, ready, pool)

	var counter atomic.Uint64
	handles := make([]JobHandle, jobs)
	for i := range handles {
		handles[i] = mgr.InsertReadyFunc(func() { counter.Add(1) })
	}

	for i, h := range handles {
		h.WaitOn()
		// Jobs 0..i have all been waited on, so at least i+1 bodies ran.
		assert.GreaterOrEqual(t, counter.Load(), uint64(i+1))
	}
	assert.Equal(t, uint64(jobs), counter.Load())
}

func TestCounter(t *testing.T) {
	cases := []struct{ workers, ready, pool, jobs int }{
		{1, 1, 1, 100},
		{10, 1, 1, 100},
		{30, 1, 1, 100},
		{10, 10, 10, 1000},
		{10, 100, 100, 5000},
		{30, 1000, 1000, 10000},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("w%d_r%d_f%d_j%d", c.workers, c.ready, c.pool, c.jobs), func(t *testing.T) {
			runCounterTest(t, c.workers, c.ready, c.pool, c.jobs)
		})
	}
}

// runOneToManyTest gates jobs dependents behind a single spinning job.
func runOneToManyTest(t *testing.T, workers, ready, pool, jobs int) {
	t.Helper()
	mgr := newTestManager(t, workers, ready, pool)

	handles := make([]JobHandle, jobs)

	for round := 0; round < 10; round++ {
		var waitFor atomic.Bool
		var waiterDone atomic.Bool
		var counter atomic.Uint64

		gate := mgr.InsertReadyFunc(func() {
			for !waitFor.Load() {
				runtime.Gosched()
			}
			waiterDone.Store(true)
		})

		for i := range handles {
			handles[i] = mgr.InsertAfterFunc(func() { counter.Add(1) }, gate)
		}

		for _, h := range handles {
			assert.False(t, h.IsDone())
		}
		assert.Equal(t, uint64(0), counter.Load())
		assert.False(t, waiterDone.Load())

		// Unlock the gate and drain.
		waitFor.Store(true)
		gate.WaitOn()
		assert.True(t, waiterDone.Load())

		for _, h := range handles {
			h.WaitOn()
		}
		assert.Equal(t, uint64(jobs), counter.Load())
	}
}

func TestDependencyOneToMany(t *testing.T) {
	cases := []struct{ workers, ready, pool, jobs int }{
		{1, 1, 2, 1},
		{1, 2, 3, 2},
		// Some free entries are consumed as dependents while the gate holds
		// its worker.
		{1, 100, 100, 80},
		{8, 99, 100, 80},
		{10, 99, 100, 80},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("w%d_r%d_f%d_j%d", c.workers, c.ready, c.pool, c.jobs), func(t *testing.T) {
			runOneToManyTest(t, c.workers, c.ready, c.pool, c.jobs)
		})
	}
}

// runManyToOneTest gates one dependent behind jobs antecedents, the last of
// which spins until released.
func runManyToOneTest(t *testing.T, workers, ready, pool, jobs int) {
	t.Helper()
	mgr := newTestManager(t, workers, ready, pool)

	handles := make([]JobHandle, jobs)

	for round := 0; round < 10; round++ {
		var waitFor atomic.Bool
		var waiterDone atomic.Bool
		var counter atomic.Uint64
		var result atomic.Uint64

		for i := 0; i < jobs-1; i++ {
			handles[i] = mgr.InsertReadyFunc(func() { counter.Add(1) })
		}
		handles[jobs-1] = mgr.InsertReadyFunc(func() {
			for !waitFor.Load() {
				runtime.Gosched()
			}
			waiterDone.Store(true)
		})

		resultHandle := mgr.InsertAfterFunc(func() { result.Add(1) }, handles...)

		assert.False(t, waiterDone.Load())
		assert.Equal(t, uint64(0), result.Load())

		// Wait for the non-gated jobs.
		for i := 0; i < jobs-1; i++ {
			handles[i].WaitOn()
		}
		assert.Equal(t, uint64(jobs-1), counter.Load())
		assert.Equal(t, uint64(0), result.Load())

		// Unlock the last antecedent.
		waitFor.Store(true)
		handles[jobs-1].WaitOn()
		assert.True(t, waiterDone.Load())

		resultHandle.WaitOn()
		assert.Equal(t, uint64(1), result.Load())
	}
}

func TestDependencyManyToOne(t *testing.T) {
	cases := []struct{ workers, ready, pool, jobs int }{
		{1, 1, 2, 1},
		{1, 2, 3, 2},
		{1, 100, 100, 80},
		{8, 99, 100, 80},
		{10, 99, 100, 80},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("w%d_r%d_f%d_j%d", c.workers, c.ready, c.pool, c.jobs), func(t *testing.T) {
			runManyToOneTest(t, c.workers, c.ready, c.pool, c.jobs)
		})
	}
}

// TestPoolSaturation submits far more jobs than the pool can track at once;
// submission backpressure must absorb the excess without losing or
// duplicating work.
func TestPoolSaturation(t *testing.T) {
	mgr := newTestManager(t, 4, 8, 8)

	const jobs = 2000
	var counter atomic.Uint64
	handles := make([]JobHandle, jobs)
	for i := range handles {
		handles[i] = mgr.InsertReadyFunc(func() { counter.Add(1) })
	}
	for _, h := range handles {
		h.WaitOn()
	}
	assert.Equal(t, uint64(jobs), counter.Load())
}
