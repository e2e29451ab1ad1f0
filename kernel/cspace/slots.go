// Package cspace manages the capability-address space of the resource
// layer: allocation of empty capability slots out of the root namespace and
// retyping of kernel objects out of untyped memory into those slots.
package cspace

import (
	"selos/kernel"
	"selos/kernel/sel4"
	"selos/kernel/sync"
)

// ErrSlotsExhausted is returned when the slot window is spent and no
// recycled slots are available.
var ErrSlotsExhausted = &kernel.Error{Module: "cspace", Message: "capability slot window exhausted"}

// SlotAllocator hands out capability slots from a fixed window of the root
// namespace. Allocation is monotonic; slots are recycled explicitly at
// well-defined points only (task exit, interrupt unregistration). A slot is
// either empty or holds exactly one capability; the allocator never hands
// out a slot that is concurrently held elsewhere.
type SlotAllocator struct {
	lock     sync.Spinlock
	next     sel4.CPtr
	end      sel4.CPtr
	recycled []sel4.CPtr
}

// NewSlotAllocator returns an allocator over the slot window [start, end).
func NewSlotAllocator(start, end sel4.CPtr) *SlotAllocator {
	return &SlotAllocator{next: start, end: end}
}

// Alloc returns a fresh empty slot, preferring recently recycled slots.
func (a *SlotAllocator) Alloc() (sel4.CPtr, *kernel.Error) {
	a.lock.Acquire()
	defer a.lock.Release()

	if n := len(a.recycled); n != 0 {
		slot := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return slot, nil
	}

	if a.next == a.end {
		return 0, ErrSlotsExhausted
	}

	slot := a.next
	a.next++
	return slot, nil
}

// Recycle returns a slot to the allocator. The caller guarantees the slot
// no longer holds a live capability.
func (a *SlotAllocator) Recycle(slot sel4.CPtr) {
	a.lock.Acquire()
	a.recycled = append(a.recycled, slot)
	a.lock.Release()
}
