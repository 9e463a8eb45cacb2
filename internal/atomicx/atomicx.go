// ============================================================================
// TaskGrid Atomic Primitives - Previous-Value Wrappers
// ============================================================================
//
// Package: internal/atomicx
// Purpose: Typed atomic operations that return the value BEFORE the update
//
// Why wrap sync/atomic at all:
//   Every caller in the scheduler reasons in terms of "what was the value
//   when my update landed". Barrier release is the canonical example: the
//   thread whose decrement drives the counter to zero is the one thread
//   allowed to enqueue the job, and it learns that by seeing previous==1.
//   sync/atomic returns the NEW value from Add, which invites off-by-one
//   mistakes at every call site; centralizing the subtraction here keeps the
//   call sites honest.
//
// Memory ordering:
//   All operations are sequentially consistent (the only ordering Go's
//   sync/atomic provides). Nothing in the scheduler needs anything looser.
//
// ============================================================================

// Package atomicx provides typed atomic operations returning previous values.
package atomicx

import "sync/atomic"

// AddInt32 atomically adds delta to *addr and returns the previous value.
func AddInt32(addr *int32, delta int32) int32 {
	return atomic.AddInt32(addr, delta) - delta
}

// SubtractInt32 atomically subtracts delta from *addr and returns the
// previous value.
func SubtractInt32(addr *int32, delta int32) int32 {
	return atomic.AddInt32(addr, -delta) + delta
}

// IncrementInt32 atomically increments *addr and returns the previous value.
func IncrementInt32(addr *int32) int32 {
	return atomic.AddInt32(addr, 1) - 1
}

// DecrementInt32 atomically decrements *addr and returns the previous value.
func DecrementInt32(addr *int32) int32 {
	return atomic.AddInt32(addr, -1) + 1
}

// AddUint32 atomically adds delta to *addr and returns the previous value.
func AddUint32(addr *uint32, delta uint32) uint32 {
	return atomic.AddUint32(addr, delta) - delta
}

// IncrementUint32 atomically increments *addr and returns the previous value.
func IncrementUint32(addr *uint32) uint32 {
	return atomic.AddUint32(addr, 1) - 1
}

// AddInt64 atomically adds delta to *addr and returns the previous value.
func AddInt64(addr *int64, delta int64) int64 {
	return atomic.AddInt64(addr, delta) - delta
}

// AddUint64 atomically adds delta to *addr and returns the previous value.
func AddUint64(addr *uint64, delta uint64) uint64 {
	return atomic.AddUint64(addr, delta) - delta
}

// IncrementUint64 atomically increments *addr and returns the previous value.
func IncrementUint64(addr *uint64) uint64 {
	return atomic.AddUint64(addr, 1) - 1
}

// CompareAndSwapInt32 atomically replaces *addr with replacement if it equals
// comparand. It returns the value observed before the operation and whether
// the swap took place. When swapped is false the returned value is a plain
// load and may already be stale by the time the caller inspects it.
func CompareAndSwapInt32(addr *int32, comparand, replacement int32) (previous int32, swapped bool) {
	for {
		old := atomic.LoadInt32(addr)
		if old != comparand {
			return old, false
		}
		if atomic.CompareAndSwapInt32(addr, comparand, replacement) {
			return old, true
		}
	}
}

// CompareAndSwapUint32 is CompareAndSwapInt32 for uint32 operands.
func CompareAndSwapUint32(addr *uint32, comparand, replacement uint32) (previous uint32, swapped bool) {
	for {
		old := atomic.LoadUint32(addr)
		if old != comparand {
			return old, false
		}
		if atomic.CompareAndSwapUint32(addr, comparand, replacement) {
			return old, true
		}
	}
}

// CompareAndSwapUint64 is CompareAndSwapInt32 for uint64 operands. This is
// the widest CAS the platform offers; handle ids fit in it by construction.
func CompareAndSwapUint64(addr *uint64, comparand, replacement uint64) (previous uint64, swapped bool) {
	for {
		old := atomic.LoadUint64(addr)
		if old != comparand {
			return old, false
		}
		if atomic.CompareAndSwapUint64(addr, comparand, replacement) {
			return old, true
		}
	}
}

// LoadInt32 atomically loads *addr.
func LoadInt32(addr *int32) int32 { return atomic.LoadInt32(addr) }

// LoadUint32 atomically loads *addr.
func LoadUint32(addr *uint32) uint32 { return atomic.LoadUint32(addr) }

// LoadUint64 atomically loads *addr.
func LoadUint64(addr *uint64) uint64 { return atomic.LoadUint64(addr) }

// StoreInt32 atomically stores val into *addr.
func StoreInt32(addr *int32, val int32) { atomic.StoreInt32(addr, val) }

// StoreUint32 atomically stores val into *addr.
func StoreUint32(addr *uint32, val uint32) { atomic.StoreUint32(addr, val) }
