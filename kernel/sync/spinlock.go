// Package sync provides the spinlock implementation used to guard the
// resource layer's mutable state. Locks are short-held and non-reentrant;
// no lock is ever held across a kernel call that can suspend indefinitely,
// which makes them safe to take with interrupts masked.
package sync

import "sync/atomic"

// Spinlock implements a lock where each thread trying to acquire it
// busy-waits till the lock becomes available. Any attempt to re-acquire a
// lock already held by the current thread will cause a deadlock.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the calling thread.
func (l *Spinlock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock
// could be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other threads to acquire it.
// Calling Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
