// ============================================================================
// TaskGrid Scheduler - Manager
// ============================================================================
//
// Package: pkg/scheduler
// File: scheduler.go
// Purpose: Job submission, the barrier-release protocol, and shutdown
//
// Architecture:
//   ┌───────────┐ InsertReady / InsertBlocked / InsertAfter
//   │  Callers  │ ───────────────────────────────┐
//   └───────────┘                                ▼
//        ▲                              ┌──────────────┐
//   WaitOn/IsDone                       │ record pool  │ (fixed free-list)
//        │                              └──────┬───────┘
//   ┌───────────┐      pop                     │ publish
//   │  Workers  │ ◀── ready queue ◀────────────┘
//   └───────────┘      (bounded FIFO; barrier releases push here too)
//
// Submission Protocol:
//   Every submission allocates a record, fills it while in Configuring, mints
//   the caller's handle, and only then publishes: Ready jobs go straight to
//   the ready queue, Blocked jobs sit on their pending-barrier count. The
//   handle is always minted before publication so a job that runs and
//   retires immediately can never race the handle's generation snapshot.
//
// Barrier-Release Protocol:
//   pending is the canonical synchronization variable for a blocked job.
//   Every release decrements it atomically; the exactly-one decrementer that
//   observes the transition to zero moves the job to Ready and enqueues it.
//   The fast path (not the final release) is a single atomic subtract.
//
// Backpressure:
//   Pool exhaustion and a full ready queue both absorb the submitter by
//   spinning with a yield rather than surfacing an error; the handle ABI has
//   no failure slot and the capacities are caller-chosen.
//
// Shutdown:
//   Shutdown signals the ready queue, which drains all workers, and waits
//   for them to exit. Queued-but-unpopped jobs do not run. Callers are
//   responsible for ordering shutdown after their last submission.
//
// ============================================================================

// Package scheduler distributes short pieces of work across a fixed worker
// pool, honoring dependencies between them.
package scheduler

import (
	"errors"
	"log/slog"

	"github.com/ChuLiYu/taskgrid/internal/atomicx"
	"github.com/ChuLiYu/taskgrid/internal/readyqueue"
	"github.com/ChuLiYu/taskgrid/pkg/runnable"
)

// ============================================================================
// Error Definitions
// ============================================================================

var (
	// ErrInvalidWorkerCount indicates Options.WorkerCount below 1.
	ErrInvalidWorkerCount = errors.New("scheduler: worker count must be at least 1")
	// ErrInvalidQueueCapacity indicates Options.ReadyQueueCapacity below 1.
	ErrInvalidQueueCapacity = errors.New("scheduler: ready queue capacity must be at least 1")
	// ErrInvalidPoolCapacity indicates a record pool smaller than the ready queue.
	ErrInvalidPoolCapacity = errors.New("scheduler: record pool capacity must be at least the ready queue capacity")
)

// ============================================================================
// Options and Observer
// ============================================================================

// Observer receives scheduler instrumentation events. internal/metrics
// provides the Prometheus implementation; a nil Observer disables
// instrumentation entirely.
type Observer interface {
	RecordSubmit()
	RecordCompleted(runSeconds float64)
	RecordBarrierReleases(n int)
	RecordCompletionRun()
	SetQueueStats(ready, free int)
	AddBlocked(delta int)
	WorkerStarted()
	WorkerIdle()
}

// Options configures a scheduler instance.
type Options struct {
	// WorkerCount is the number of worker goroutines to spawn (>= 1).
	WorkerCount int

	// ReadyQueueCapacity bounds the number of concurrently-enqueued ready
	// jobs (>= 1). Sizing it below WorkerCount is legal but leaves workers
	// idle under load; Initialize logs a warning.
	ReadyQueueCapacity int

	// RecordPoolCapacity bounds the number of concurrently-live jobs across
	// all states (>= ReadyQueueCapacity, plus slack for blocked dependents).
	RecordPoolCapacity int

	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives instrumentation events. Nil disables instrumentation.
	Metrics Observer
}

// ============================================================================
// Manager
// ============================================================================

// Manager is a scheduler instance: a record pool, a ready queue, and a
// fixed pool of workers. Create one with Initialize and stop it with
// Shutdown. All methods are safe for concurrent use.
type Manager struct {
	log *slog.Logger
	met Observer

	pool  *recordPool
	ready *readyqueue.Queue[*jobRecord]

	workerCount int
	workers     workerGroup

	// Live counters for Stats and the instrumentation gauges.
	submitted uint64 // atomic
	completed uint64 // atomic
	blocked   int32  // atomic
	running   int32  // atomic
}

// Initialize creates a scheduler, spawns its workers, and returns it ready
// for submissions.
func Initialize(opts Options) (*Manager, error) {
	if opts.WorkerCount < 1 {
		return nil, ErrInvalidWorkerCount
	}
	if opts.ReadyQueueCapacity < 1 {
		return nil, ErrInvalidQueueCapacity
	}
	if opts.RecordPoolCapacity < opts.ReadyQueueCapacity {
		return nil, ErrInvalidPoolCapacity
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		log:         logger,
		met:         opts.Metrics,
		ready:       readyqueue.New[*jobRecord](opts.ReadyQueueCapacity),
		workerCount: opts.WorkerCount,
	}
	m.pool = newRecordPool(opts.RecordPoolCapacity, m)

	if opts.ReadyQueueCapacity < opts.WorkerCount {
		logger.Warn("ready queue smaller than worker pool, workers will sit idle",
			"ready_queue_capacity", opts.ReadyQueueCapacity,
			"worker_count", opts.WorkerCount)
	}

	m.workers.start(m, opts.WorkerCount)

	logger.Info("scheduler started",
		"workers", opts.WorkerCount,
		"ready_queue_capacity", opts.ReadyQueueCapacity,
		"record_pool_capacity", opts.RecordPoolCapacity)
	return m, nil
}

// Shutdown signals the workers and blocks until every one of them has
// exited. Jobs still sitting in the ready queue do not run. It is the
// caller's responsibility to order Shutdown after the last submission;
// submissions racing Shutdown may be dropped but never corrupt the pool.
// Shutdown is idempotent.
func (m *Manager) Shutdown() {
	m.workers.stop(m)
}

// ============================================================================
// Submission Operations
// ============================================================================

// InsertReady submits a job that is immediately eligible to run. The
// Arguments blob is copied by value; a nil args submits a zeroed blob.
func (m *Manager) InsertReady(run runnable.Runnable, args *runnable.Arguments) JobHandle {
	rec := m.pool.allocate()
	rec.run = run
	if args != nil {
		rec.args = *args
	}
	h := handleFor(rec)

	m.noteSubmit(1)
	atomicx.StoreInt32(&rec.state, stateReady)
	m.enqueue(rec)
	return h
}

// InsertReadyFunc is InsertReady for an argumentless closure.
func (m *Manager) InsertReadyFunc(fn func()) JobHandle {
	return m.InsertReady(runnable.Func(fn), nil)
}

// InsertReadyAll submits a batch of jobs under a single pool transaction and
// returns one composite handle that reports done only when every job in the
// batch has completed.
//
// args may be empty (every job gets a zeroed blob), hold exactly one entry
// (broadcast to every job), or hold one entry per runnable. Any other count
// is a programming error and panics. An empty batch returns an invalid
// handle, which reports done immediately.
func (m *Manager) InsertReadyAll(runs []runnable.Runnable, args []runnable.Arguments) JobHandle {
	n := len(runs)
	if len(args) != 0 && len(args) != 1 && len(args) != n {
		panic("scheduler: InsertReadyAll arguments count must be 0, 1, or len(runs)")
	}
	if n == 0 {
		return InvalidJobHandle()
	}

	// One extra record acts as the batch trailer: a no-op job gated on the
	// retirement of all n children.
	recs := make([]*jobRecord, n+1)
	m.pool.allocateBatch(recs)

	trailer := recs[n]
	trailer.run = nil
	atomicx.StoreInt32(&trailer.pending, int32(n))
	atomicx.StoreInt32(&trailer.state, stateBlocked)
	th := handleFor(trailer)
	trailerGen := atomicx.LoadUint32(&trailer.generation)

	for i := 0; i < n; i++ {
		rec := recs[i]
		rec.run = runs[i]
		switch len(args) {
		case 1:
			rec.args = args[0]
		case n:
			rec.args = args[i]
		}
		// Still in Configuring: nothing else can see the list yet.
		rec.successors = append(rec.successors, successorRef{
			index:      trailer.index,
			generation: trailerGen,
		})
	}

	m.noteSubmit(uint64(n))
	m.noteBlocked(1)

	// Publish only after every child is wired to the trailer; the trailer's
	// pending count was preset above, so early retirements just decrement.
	for i := 0; i < n; i++ {
		atomicx.StoreInt32(&recs[i].state, stateReady)
		m.enqueue(recs[i])
	}
	return th
}

// InsertBlocked submits a job that must not run until released. The
// returned handle holds one barrier (the configuration bias); the job
// becomes eligible only after ReleaseBarrier has balanced it and any
// barriers added with AddBarrier.
func (m *Manager) InsertBlocked(run runnable.Runnable, args *runnable.Arguments) JobHandleBlocked {
	rec := m.pool.allocate()
	rec.run = run
	if args != nil {
		rec.args = *args
	}
	atomicx.StoreInt32(&rec.pending, 1)
	h := JobHandleBlocked{handleFor(rec)}

	m.noteSubmit(1)
	m.noteBlocked(1)
	atomicx.StoreInt32(&rec.state, stateBlocked)
	return h
}

// InsertBlockedFunc is InsertBlocked for an argumentless closure.
func (m *Manager) InsertBlockedFunc(fn func()) JobHandleBlocked {
	return m.InsertBlocked(runnable.Func(fn), nil)
}

// InsertAfter submits a job that becomes eligible only after every
// antecedent has completed. Antecedents are inspected in the order given;
// ones that have already retired are counted as complete immediately. With
// no antecedents this degenerates to InsertReady.
func (m *Manager) InsertAfter(run runnable.Runnable, args *runnable.Arguments, antecedents []JobHandle) JobHandle {
	rec := m.pool.allocate()
	rec.run = run
	if args != nil {
		rec.args = *args
	}

	// Pending starts with one barrier per antecedent plus a configuration
	// bias that keeps the job blocked until wiring is finished. The bias
	// also guarantees the final transition to Ready happens at most once no
	// matter how the antecedents' completions interleave with this loop.
	atomicx.StoreInt32(&rec.pending, int32(len(antecedents))+1)
	h := handleFor(rec)
	gen := atomicx.LoadUint32(&rec.generation)

	m.noteSubmit(1)
	m.noteBlocked(1)
	atomicx.StoreInt32(&rec.state, stateBlocked)

	for _, a := range antecedents {
		if !m.addSuccessor(a, rec) {
			// Antecedent already done; its barrier releases right now.
			m.releaseBarrier(rec, gen, 1)
		}
	}
	m.releaseBarrier(rec, gen, 1) // drop the configuration bias
	return h
}

// InsertAfterFunc is InsertAfter for an argumentless closure.
func (m *Manager) InsertAfterFunc(fn func(), antecedents ...JobHandle) JobHandle {
	return m.InsertAfter(runnable.Func(fn), nil, antecedents)
}

// ============================================================================
// Barrier and Successor Protocol
// ============================================================================

// addSuccessor appends dep to antecedent a's successor list. It returns
// false when the antecedent has already retired (stale handle or lost race
// against the retiring worker), in which case the caller must release dep's
// barrier itself.
func (m *Manager) addSuccessor(a JobHandle, dep *jobRecord) bool {
	if !a.IsValid() {
		return false
	}
	ar := a.rec
	if atomicx.LoadUint32(&ar.generation) != a.generation() {
		return false
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()
	if atomicx.LoadUint32(&ar.generation) != a.generation() || ar.retired {
		return false
	}
	ar.successors = append(ar.successors, successorRef{
		index:      dep.index,
		generation: atomicx.LoadUint32(&dep.generation),
	})
	return true
}

// releaseBarrier decrements rec's pending count by count. Exactly one
// release observes the transition to zero; that release moves the job to
// Ready and enqueues it. A generation mismatch means the job already ran
// and retired; the release is then a no-op. Driving the count below zero is
// a programming error and panics.
func (m *Manager) releaseBarrier(rec *jobRecord, gen uint32, count int) {
	if atomicx.LoadUint32(&rec.generation) != gen {
		return
	}
	prev := atomicx.SubtractInt32(&rec.pending, int32(count))
	remaining := prev - int32(count)
	if remaining < 0 {
		panic("scheduler: barrier released below zero")
	}
	if m.met != nil {
		m.met.RecordBarrierReleases(count)
	}
	if remaining == 0 {
		atomicx.StoreInt32(&rec.state, stateReady)
		m.noteBlocked(-1)
		m.enqueue(rec)
	}
}

// enqueue pushes a Ready record into the ready queue. A push refused by a
// shut-down queue means the job is cancelled; its waiters are the caller's
// problem per the shutdown contract.
func (m *Manager) enqueue(rec *jobRecord) {
	if !m.ready.Push(rec) {
		m.log.Warn("job dropped: submitted during shutdown", "index", rec.index)
		return
	}
	if m.met != nil {
		m.met.SetQueueStats(m.ready.Len(), m.pool.freeCount())
	}
}

// noteBlocked adjusts the blocked-job counter and gauge by delta.
func (m *Manager) noteBlocked(delta int) {
	atomicx.AddInt32(&m.blocked, int32(delta))
	if m.met != nil {
		m.met.AddBlocked(delta)
	}
}

// noteSubmit bumps the submission counters.
func (m *Manager) noteSubmit(n uint64) {
	atomicx.AddUint64(&m.submitted, n)
	if m.met != nil {
		for i := uint64(0); i < n; i++ {
			m.met.RecordSubmit()
		}
	}
}

// ============================================================================
// Introspection
// ============================================================================

// Stats reports an instantaneous view of the scheduler's queues and
// counters. Values are sampled independently and may not be mutually
// consistent under concurrent load.
func (m *Manager) Stats() map[string]int {
	return map[string]int{
		"ready":     m.ready.Len(),
		"blocked":   int(atomicx.LoadInt32(&m.blocked)),
		"running":   int(atomicx.LoadInt32(&m.running)),
		"free":      m.pool.freeCount(),
		"submitted": int(atomicx.LoadUint64(&m.submitted)),
		"completed": int(atomicx.LoadUint64(&m.completed)),
	}
}

// WorkerCount returns the fixed size of the worker pool.
func (m *Manager) WorkerCount() int {
	return m.workerCount
}
