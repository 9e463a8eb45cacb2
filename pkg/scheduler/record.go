// ============================================================================
// TaskGrid Scheduler - Job Record
// ============================================================================
//
// Package: pkg/scheduler
// File: record.go
// Purpose: Per-job state for the lifetime of one submission
//
// Job State Machine:
//   Free (resident in pool)
//      ↓ allocate()
//   Configuring (submitter fills fields)
//      ↓ publish(barrier==0)          ↓ publish(barrier>0)
//   Ready ←──(final barrier release)── Blocked
//      ↓ worker pops
//   Running
//      ↓ body returns
//   Retiring (run completion list, decrement successors, broadcast done)
//      ↓ release()
//   Free (generation advanced by two)
//
// Generation Protocol:
//   The generation counter is always even and advances by two every time the
//   record returns to the pool. A handle snapshots the generation at
//   submission; any later mismatch means the job already retired and the
//   record now belongs to someone else. This is what makes dangling handles
//   safe without reference counting.
//
// List Protocol:
//   successors and completions accept appends only while the record is live
//   and not yet drained (retired flag, under mu). The retiring worker
//   snapshots both lists under mu in one critical section; an append that
//   loses that race observes retired==true and falls back to acting
//   immediately (run the callback now / skip the antecedent).
//
// ============================================================================

package scheduler

import (
	"sync"

	"github.com/ChuLiYu/taskgrid/internal/atomicx"
	"github.com/ChuLiYu/taskgrid/internal/monitor"
	"github.com/ChuLiYu/taskgrid/pkg/runnable"
)

// Job record states. Only the transitions drawn in the state machine above
// are legal.
const (
	stateFree int32 = iota
	stateConfiguring
	stateBlocked
	stateReady
	stateRunning
	stateRetiring
)

// successorRef names a dependent record waiting on this one. The generation
// is snapshotted at append time so a recycled slot is never touched.
type successorRef struct {
	index      uint32
	generation uint32
}

// completionEntry is one (callback, arguments) pair to invoke after the job
// body returns and before successors are released.
type completionEntry struct {
	run  runnable.Runnable
	args runnable.Arguments
}

// jobRecord holds all state of one submitted job. Records are pool-owned for
// their entire lifetime; callers only ever see opaque handles.
type jobRecord struct {
	index      uint32 // position in the pool array, fixed for life
	generation uint32 // atomic; always even, +2 per recycle

	state   int32 // atomic; one of the state constants
	pending int32 // atomic; outstanding barriers, 0 == eligible to run
	done    uint32 // atomic; set under mon before the completion broadcast

	run  runnable.Runnable
	args runnable.Arguments

	// mon is shared with peer records (striped across the pool); done-flag
	// writes and completion waits go through it.
	mon *monitor.Monitor

	// owner routes barrier releases and retirement back to the scheduler
	// that allocated this record.
	owner *Manager

	mu          sync.Mutex
	retired     bool // lists drained; no further appends accepted
	successors  []successorRef
	completions []completionEntry
}

// resetForConfigure prepares a freshly allocated record. The pool guarantees
// no other allocator holds this record, but stale handles may still be
// probing it, so the shared fields are cleared under the same synchronization
// those probes use.
func (r *jobRecord) resetForConfigure() {
	atomicx.StoreInt32(&r.state, stateConfiguring)
	atomicx.StoreInt32(&r.pending, 0)
	atomicx.StoreUint32(&r.done, 0)

	r.mu.Lock()
	r.run = nil
	r.args = runnable.Arguments{}
	r.retired = false
	r.successors = r.successors[:0]
	r.completions = r.completions[:0]
	r.mu.Unlock()
}
