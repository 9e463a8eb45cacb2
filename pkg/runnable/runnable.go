// ============================================================================
// TaskGrid Core Type Definitions - Runnable and Arguments
// ============================================================================
//
// Package: pkg/runnable
// Purpose: The callable contract shared by the scheduler and its callers
//
// Design Principles:
//   1. One callable shape everywhere - Runnable is the common base used for
//      job bodies, completion callbacks, and barrier releases, which lets the
//      scheduler interoperate with every other subsystem
//   2. Fixed-size Arguments - captured state travels by value in a four-word
//      blob owned by the job record, never by reference to caller storage
//   3. Closure adaptation - Func bridges ordinary Go closures onto the
//      Runnable/Arguments pair without any caller-side casting
//
// Ownership:
//   The scheduler copies Arguments by value at submission time. Pointers or
//   handles a caller smuggles through the blob remain the caller's
//   responsibility; the referenced data must outlive the job.
//
// ============================================================================

// Package runnable defines the callable contract consumed by the scheduler.
package runnable

// Arguments is the fixed-size, trivially-copyable payload handed to a
// Runnable. The four words are opaque to the scheduler; jobs are free to
// interpret them however they like.
type Arguments struct {
	A0 uintptr
	A1 uintptr
	A2 uintptr
	A3 uintptr
}

// Runnable is the common callable shape used for job bodies, completion
// callbacks and barrier releases. The arguments pointer is only valid for
// the duration of the call; implementations must copy anything they keep.
type Runnable func(args *Arguments)

// Completion is the common contract for asynchronous operations. JobHandle
// implements it; other long-running services can too, which keeps wait
// loops uniform across the library.
type Completion interface {
	// IsDone reports whether the operation has completed at this instant.
	IsDone() bool

	// WaitOn blocks until the operation completes.
	WaitOn()
}

// Func adapts an argumentless closure to a Runnable. The closure's captured
// variables take the place of the Arguments blob; the blob itself is ignored.
//
// Example:
//
//	h := mgr.InsertReady(runnable.Func(func() { counter.Add(1) }), nil)
func Func(fn func()) Runnable {
	return func(*Arguments) {
		fn()
	}
}
