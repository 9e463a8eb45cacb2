// ============================================================================
// TaskGrid Scheduler - Worker Pool
// ============================================================================
//
// Package: pkg/scheduler
// File: worker.go
// Purpose: The long-running goroutines that execute jobs
//
// Each worker loops: pop a record from the ready queue (blocking), run its
// body, then retire it. Retirement is where the ordering guarantees live:
// completion runnables fire in insertion order strictly after the body and
// strictly before successor barriers are released, so a completion callback
// observes the job's effects before any dependent starts.
//
// Graceful Shutdown:
//   The ready queue's shutdown signal drains every blocked pop with
//   ok=false; workers exit their loops and the WaitGroup releases stop().
//   A worker that already popped a job runs it to completion first.
//
// Failure Model:
//   A body that returns normally is the only supported mode. There is no
//   catch-and-report path; a panicking body is a caller bug and takes the
//   process down just as it would on a bare goroutine.
//
// ============================================================================

package scheduler

import (
	"sync"
	"time"

	"github.com/ChuLiYu/taskgrid/internal/atomicx"
)

// workerGroup tracks the worker goroutines for startup and shutdown.
type workerGroup struct {
	wg   sync.WaitGroup
	once sync.Once
}

// start spawns count workers.
func (g *workerGroup) start(m *Manager, count int) {
	for i := 0; i < count; i++ {
		g.wg.Add(1)
		go m.workerLoop(i)
	}
}

// stop signals the ready queue and waits for every worker to exit. Safe to
// call more than once.
func (g *workerGroup) stop(m *Manager) {
	g.once.Do(func() {
		m.ready.SignalShutdown()
		g.wg.Wait()
		m.log.Info("scheduler stopped",
			"submitted", atomicx.LoadUint64(&m.submitted),
			"completed", atomicx.LoadUint64(&m.completed))
	})
}

// workerLoop is the body of one worker goroutine.
func (m *Manager) workerLoop(id int) {
	defer m.workers.wg.Done()
	m.log.Debug("worker started", "worker", id)

	for {
		rec, ok := m.ready.PopBlocking()
		if !ok {
			m.log.Debug("worker exiting", "worker", id)
			return
		}
		m.execute(rec)
	}
}

// execute runs one popped record through Running and Retiring back to Free.
func (m *Manager) execute(rec *jobRecord) {
	atomicx.StoreInt32(&rec.state, stateRunning)
	atomicx.IncrementInt32(&m.running)
	if m.met != nil {
		m.met.WorkerStarted()
	}

	start := time.Now()
	if rec.run != nil {
		rec.run(&rec.args)
	}
	elapsed := time.Since(start)

	// Count the completion before retirement publishes the done flag, so a
	// caller woken by WaitOn already sees this job in the completed total.
	// A bulk-submission trailer has no body and is not counted as submitted,
	// so it is not counted as completed either.
	if rec.run != nil {
		atomicx.IncrementUint64(&m.completed)
		if m.met != nil {
			m.met.RecordCompleted(elapsed.Seconds())
		}
	}

	m.retire(rec)

	atomicx.DecrementInt32(&m.running)
	if m.met != nil {
		m.met.WorkerIdle()
		m.met.SetQueueStats(m.ready.Len(), m.pool.freeCount())
	}
}

// retire drains a record whose body has returned: completion runnables run
// in insertion order, then each successor loses one barrier, then waiters
// are woken, and finally the record goes back to the pool under an advanced
// generation.
func (m *Manager) retire(rec *jobRecord) {
	atomicx.StoreInt32(&rec.state, stateRetiring)

	// Snapshot and seal both lists in one critical section; appends that
	// lose this race observe retired and act immediately on their own
	// goroutine.
	rec.mu.Lock()
	comps := rec.completions
	succs := rec.successors
	rec.completions = nil
	rec.successors = nil
	rec.retired = true
	rec.mu.Unlock()

	for i := range comps {
		comps[i].run(&comps[i].args)
		if m.met != nil {
			m.met.RecordCompletionRun()
		}
	}

	for _, s := range succs {
		dep := m.pool.get(s.index)
		m.releaseBarrier(dep, s.generation, 1)
	}

	// The done flag flips under the completion monitor so no waiter can
	// check-then-park between the flag and the broadcast.
	mon := rec.mon
	mon.Lock()
	atomicx.StoreUint32(&rec.done, 1)
	mon.Broadcast()
	mon.Unlock()

	m.pool.release(rec)
}
