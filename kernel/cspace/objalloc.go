package cspace

import (
	"selos/kernel"
	"selos/kernel/sel4"
	"selos/kernel/sync"
)

// ObjectAllocator retypes kernel objects out of a single untyped memory
// capability. The global factories are backed by the boot untypeds; each
// task additionally owns a private allocator over one 2 MiB unit so its
// objects can be reclaimed in bulk by revoking that unit.
type ObjectAllocator struct {
	lock  sync.Spinlock
	inv   sel4.Invoker
	slots *SlotAllocator
	ut    sel4.CPtr
}

// NewObjectAllocator returns an allocator retyping objects out of the
// untyped capability ut into slots drawn from slots.
func NewObjectAllocator(inv sel4.Invoker, slots *SlotAllocator, ut sel4.CPtr) *ObjectAllocator {
	return &ObjectAllocator{inv: inv, slots: slots, ut: ut}
}

// Untyped returns the untyped capability backing this allocator.
func (a *ObjectAllocator) Untyped() sel4.CPtr {
	return a.ut
}

// RecycleSlot returns the slot of an object allocated by this allocator.
// The caller guarantees the object itself has been (or will be) reclaimed
// through the backing untyped; only the slot address is reused.
func (a *ObjectAllocator) RecycleSlot(slot sel4.CPtr) {
	a.slots.Recycle(slot)
}

func (a *ObjectAllocator) allocObject(t sel4.ObjectType, sizeBits uint) (sel4.CPtr, *kernel.Error) {
	slot, err := a.slots.Alloc()
	if err != nil {
		return 0, err
	}

	a.lock.Acquire()
	err = a.inv.Retype(a.ut, t, sizeBits, slot, 1)
	a.lock.Release()
	if err != nil {
		a.slots.Recycle(slot)
		return 0, err
	}

	return slot, nil
}

// AllocCNode allocates a capability namespace of the given radix.
func (a *ObjectAllocator) AllocCNode(radixBits uint) (sel4.CPtr, *kernel.Error) {
	return a.allocObject(sel4.ObjectCNode, radixBits)
}

// AllocTCB allocates a thread-control capability.
func (a *ObjectAllocator) AllocTCB() (sel4.CPtr, *kernel.Error) {
	return a.allocObject(sel4.ObjectTCB, 0)
}

// AllocEndpoint allocates a synchronous IPC endpoint.
func (a *ObjectAllocator) AllocEndpoint() (sel4.CPtr, *kernel.Error) {
	return a.allocObject(sel4.ObjectEndpoint, 0)
}

// AllocNotification allocates a notification object.
func (a *ObjectAllocator) AllocNotification() (sel4.CPtr, *kernel.Error) {
	return a.allocObject(sel4.ObjectNotification, 0)
}

// AllocPageTable allocates one intermediate page-table object.
func (a *ObjectAllocator) AllocPageTable() (sel4.CPtr, *kernel.Error) {
	return a.allocObject(sel4.ObjectPageTable, 0)
}

// AllocPage allocates one base-page frame.
func (a *ObjectAllocator) AllocPage() (sel4.CPtr, *kernel.Error) {
	return a.allocObject(sel4.ObjectPage, 0)
}

// AllocUntyped allocates a child untyped capability of size 2^sizeBits
// bytes.
func (a *ObjectAllocator) AllocUntyped(sizeBits uint) (sel4.CPtr, *kernel.Error) {
	return a.allocObject(sel4.ObjectUntyped, sizeBits)
}

// AllocLargePages allocates count large-page frames. Pages allocated by
// one call are backed by physically contiguous memory: the kernel retypes
// sequentially from the untyped watermark.
func (a *ObjectAllocator) AllocLargePages(count int) ([]sel4.CPtr, *kernel.Error) {
	caps := make([]sel4.CPtr, count)
	for i := range caps {
		cap, err := a.allocObject(sel4.ObjectLargePage, 0)
		if err != nil {
			return nil, err
		}
		caps[i] = cap
	}
	return caps, nil
}
