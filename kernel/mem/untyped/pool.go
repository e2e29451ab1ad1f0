// Package untyped implements the pool of fixed-size untyped-memory units
// that back task construction. Units are recycled on task teardown to
// bound fragmentation and avoid repeated retype requests against the boot
// untypeds.
package untyped

import (
	"selos/kernel"
	"selos/kernel/cspace"
	"selos/kernel/mem"
	"selos/kernel/sel4"
	"selos/kernel/sync"
)

// UnitSizeBits is the size, in address bits, of every unit handed out by
// the pool.
const UnitSizeBits uint = 21

// UnitSize is the byte size of one unit (2 MiB).
const UnitSize = mem.Size(1) << UnitSizeBits

// Pool hands out 2 MiB untyped units. Every unit in the free list is
// unretyped and exclusively owned by the pool; once handed out it becomes
// the backing store of exactly one task's private allocator until that
// task is destroyed.
type Pool struct {
	lock    sync.Spinlock
	factory *cspace.ObjectAllocator
	free    []sel4.CPtr
}

// NewPool returns a pool drawing fresh units from factory.
func NewPool(factory *cspace.ObjectAllocator) *Pool {
	return &Pool{factory: factory}
}

// AllocUnit returns one untyped unit and its size, preferring recycled
// units (LIFO) over fresh ones from the factory.
func (p *Pool) AllocUnit() (sel4.CPtr, mem.Size, *kernel.Error) {
	p.lock.Acquire()
	if n := len(p.free); n != 0 {
		cap := p.free[n-1]
		p.free = p.free[:n-1]
		p.lock.Release()
		return cap, UnitSize, nil
	}
	p.lock.Release()

	cap, err := p.factory.AllocUntyped(UnitSizeBits)
	if err != nil {
		return 0, 0, err
	}
	return cap, UnitSize, nil
}

// Recycle pushes a unit back onto the free list. The caller guarantees
// every object retyped from the unit has been revoked; a unit recycled
// with live children corrupts whichever task receives it next, and that
// cannot be detected here.
func (p *Pool) Recycle(cap sel4.CPtr) {
	p.lock.Acquire()
	p.free = append(p.free, cap)
	p.lock.Release()
}

// FreeCount returns the number of units currently in the free list.
func (p *Pool) FreeCount() int {
	p.lock.Acquire()
	defer p.lock.Release()
	return len(p.free)
}
