// ============================================================================
// TaskGrid Scheduler - Completion Handles
// ============================================================================
//
// Package: pkg/scheduler
// File: handle.go
// Purpose: The opaque (id, record) pair callers hold for a submitted job
//
// A JobHandle is a value type: copy it freely, duplicating it never affects
// job lifetime. The 64-bit id packs the record's generation (high word) and
// pool index (low word); every operation compares the id's generation
// against the record's current one first and treats a mismatch as "already
// done", which is what makes stale handles harmless.
//
// JobHandleBlocked extends JobHandle for jobs inserted blocked. It carries
// the barrier operations that must not be offered on ordinary handles.
//
// ============================================================================

package scheduler

import (
	"math"
	"time"

	"github.com/ChuLiYu/taskgrid/internal/atomicx"
	"github.com/ChuLiYu/taskgrid/pkg/runnable"
)

// InvalidJobID is the sentinel id carried by invalid handles.
const InvalidJobID uint64 = math.MaxUint64

// JobHandle identifies a submitted job. The zero value is invalid. Handles
// are safely copyable; they confer no ownership of the underlying record.
type JobHandle struct {
	id  uint64
	rec *jobRecord
}

// JobHandle implements the library-wide Completion contract.
var _ runnable.Completion = JobHandle{}

// InvalidJobHandle returns an explicitly invalid handle, useful for
// initializing slots before submission.
func InvalidJobHandle() JobHandle {
	return JobHandle{id: InvalidJobID}
}

// handleFor mints the external handle for a record in Configuring state.
func handleFor(rec *jobRecord) JobHandle {
	gen := atomicx.LoadUint32(&rec.generation)
	return JobHandle{
		id:  uint64(gen)<<32 | uint64(rec.index),
		rec: rec,
	}
}

// generation extracts the generation snapshot packed into the id.
func (h JobHandle) generation() uint32 {
	return uint32(h.id >> 32)
}

// ID returns the handle's packed 64-bit id, or InvalidJobID.
func (h JobHandle) ID() uint64 {
	return h.id
}

// IsValid reports whether the handle was ever bound to a job. Useful for
// asserts; a valid handle may still refer to a job that has long since
// completed.
func (h JobHandle) IsValid() bool {
	return h.rec != nil && h.id != InvalidJobID
}

// Invalidate resets the handle to the explicit invalid state.
func (h *JobHandle) Invalidate() {
	h.id = InvalidJobID
	h.rec = nil
}

// IsDone reports whether the referenced job has completed at this instant.
// Invalid and stale handles report true: in both cases the job (if there
// ever was one) is no longer outstanding.
func (h JobHandle) IsDone() bool {
	if !h.IsValid() {
		return true
	}
	if atomicx.LoadUint32(&h.rec.generation) != h.generation() {
		return true
	}
	return atomicx.LoadUint32(&h.rec.done) != 0
}

// WaitOn blocks until the job completes. Calling it on a completed handle
// returns immediately; calling it repeatedly is idempotent.
func (h JobHandle) WaitOn() {
	if !h.IsValid() {
		return
	}
	mon := h.rec.mon
	mon.Lock()
	for !h.IsDone() {
		mon.Wait()
	}
	mon.Unlock()
}

// WaitFor blocks until the job completes or the duration elapses. It
// reports whether the job was done when it returned.
func (h JobHandle) WaitFor(d time.Duration) bool {
	if !h.IsValid() {
		return true
	}
	deadline := time.Now().Add(d)
	mon := h.rec.mon
	mon.Lock()
	defer mon.Unlock()

	for !h.IsDone() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		mon.WaitTimeout(remaining)
	}
	return true
}

// AddCompletionRunnable arranges for run to be invoked once the job's body
// has returned, before its successors are released. Completion runnables
// run in insertion order on the retiring worker. If the job has already
// completed (or the handle is invalid or stale) the runnable is invoked
// synchronously on the calling goroutine before AddCompletionRunnable
// returns.
func (h JobHandle) AddCompletionRunnable(run runnable.Runnable, args *runnable.Arguments) {
	var a runnable.Arguments
	if args != nil {
		a = *args
	}

	if h.IsValid() {
		rec := h.rec
		rec.mu.Lock()
		if atomicx.LoadUint32(&rec.generation) == h.generation() && !rec.retired {
			rec.completions = append(rec.completions, completionEntry{run: run, args: a})
			rec.mu.Unlock()
			return
		}
		rec.mu.Unlock()
	}

	// Already retired (or never a job): the conclusion has happened, so the
	// callback fires now, on the caller.
	run(&a)
}

// JobHandleBlocked is the handle returned for blocked submissions. It starts
// life holding one barrier (the configuration bias) so the job cannot run
// before the caller finishes wiring it up; call ReleaseBarrier once wiring
// is complete.
type JobHandleBlocked struct {
	JobHandle
}

// AddBarrier atomically adds count barriers to the job and returns a
// Runnable whose invocation releases exactly one of them. The returned
// runnable ignores its Arguments and is safe to call from any goroutine, at
// most count times in total. ReleaseBarrier may be used interchangeably with
// the returned runnable.
//
// AddBarrier must only be called while the job is still blocked (its
// configuration bias or some other barrier is outstanding); calling it on a
// job that may already run is a programming error and panics.
func (h JobHandleBlocked) AddBarrier(count int) runnable.Runnable {
	if count <= 0 {
		panic("scheduler: AddBarrier count must be positive")
	}
	if !h.IsValid() {
		panic("scheduler: AddBarrier on invalid handle")
	}

	rec := h.rec
	gen := h.generation()
	if atomicx.LoadUint32(&rec.generation) != gen {
		panic("scheduler: AddBarrier on retired job")
	}
	prev := atomicx.AddInt32(&rec.pending, int32(count))
	if prev <= 0 {
		panic("scheduler: AddBarrier on a job with no outstanding barriers")
	}

	m := rec.owner
	return func(*runnable.Arguments) {
		m.releaseBarrier(rec, gen, 1)
	}
}

// ReleaseBarrier releases count barriers. The release that drives the
// outstanding count to zero makes the job ready and enqueues it. Releasing
// more barriers than were ever added is a programming error: it panics while
// the job has not yet retired, and is ignored once the job has retired.
func (h JobHandleBlocked) ReleaseBarrier(count int) {
	if count <= 0 {
		panic("scheduler: ReleaseBarrier count must be positive")
	}
	if !h.IsValid() {
		panic("scheduler: ReleaseBarrier on invalid handle")
	}
	h.rec.owner.releaseBarrier(h.rec, h.generation(), count)
}
