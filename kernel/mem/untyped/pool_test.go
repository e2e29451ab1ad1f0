package untyped

import (
	"testing"

	"selos/kernel/cspace"
	"selos/kernel/sel4"
	"selos/kernel/sel4/sel4test"
)

func newTestPool() (*Pool, *sel4test.Kernel) {
	sim := sel4test.NewKernel()
	slots := cspace.NewSlotAllocator(64, 0x1000)
	return NewPool(cspace.NewObjectAllocator(sim, slots, 23)), sim
}

func TestPoolAllocatesFreshUnitsFromFactory(t *testing.T) {
	pool, sim := newTestPool()

	cap, size, err := pool.AllocUnit()
	if err != nil {
		t.Fatal(err)
	}
	if size != UnitSize {
		t.Errorf("expected unit size %d; got %d", UnitSize, size)
	}

	obj := sim.Objects[cap]
	if obj == nil || obj.Type != sel4.ObjectUntyped {
		t.Fatalf("expected an untyped object in slot %d", cap)
	}
	if obj.SizeBits != UnitSizeBits {
		t.Errorf("expected size bits %d; got %d", UnitSizeBits, obj.SizeBits)
	}
}

func TestPoolPrefersRecycledUnits(t *testing.T) {
	pool, _ := newTestPool()

	capA, _, _ := pool.AllocUnit()
	capB, _, _ := pool.AllocUnit()

	pool.Recycle(capA)
	pool.Recycle(capB)

	// LIFO: the most recently recycled unit is handed out first.
	if cap, _, _ := pool.AllocUnit(); cap != capB {
		t.Errorf("expected recycled unit %d; got %d", capB, cap)
	}
	if cap, _, _ := pool.AllocUnit(); cap != capA {
		t.Errorf("expected recycled unit %d; got %d", capA, cap)
	}

	if got := pool.FreeCount(); got != 0 {
		t.Errorf("expected empty free list; got %d entries", got)
	}
}
