package cspace

import (
	"testing"

	"selos/kernel"
	"selos/kernel/sel4"
	"selos/kernel/sel4/sel4test"
)

func TestObjectAllocatorRetypesIntoFreshSlots(t *testing.T) {
	sim := sel4test.NewKernel()
	slots := NewSlotAllocator(64, 0x1000)
	alloc := NewObjectAllocator(sim, slots, 23)

	specs := []struct {
		allocFn func() (sel4.CPtr, *kernel.Error)
		expType sel4.ObjectType
	}{
		{func() (sel4.CPtr, *kernel.Error) { return alloc.AllocCNode(12) }, sel4.ObjectCNode},
		{alloc.AllocTCB, sel4.ObjectTCB},
		{alloc.AllocEndpoint, sel4.ObjectEndpoint},
		{alloc.AllocNotification, sel4.ObjectNotification},
		{alloc.AllocPageTable, sel4.ObjectPageTable},
		{alloc.AllocPage, sel4.ObjectPage},
		{func() (sel4.CPtr, *kernel.Error) { return alloc.AllocUntyped(21) }, sel4.ObjectUntyped},
	}

	seen := make(map[sel4.CPtr]bool)
	for specIndex, spec := range specs {
		cap, err := spec.allocFn()
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}
		if seen[cap] {
			t.Errorf("[spec %d] slot %d handed out twice", specIndex, cap)
		}
		seen[cap] = true

		obj := sim.Objects[cap]
		if obj == nil {
			t.Fatalf("[spec %d] no object retyped into slot %d", specIndex, cap)
		}
		if obj.Type != spec.expType {
			t.Errorf("[spec %d] expected object type %d; got %d", specIndex, spec.expType, obj.Type)
		}
		if obj.Parent != 23 {
			t.Errorf("[spec %d] expected object to derive from untyped 23; got %d", specIndex, obj.Parent)
		}
	}
}

func TestObjectAllocatorLargePagesAreContiguous(t *testing.T) {
	sim := sel4test.NewKernel()
	slots := NewSlotAllocator(64, 0x1000)
	alloc := NewObjectAllocator(sim, slots, 23)

	caps, err := alloc.AllocLargePages(4)
	if err != nil {
		t.Fatal(err)
	}

	base := sim.Objects[caps[0]].Phys
	for i, cap := range caps {
		exp := base + uintptr(i)*0x200000
		if got := sim.Objects[cap].Phys; got != exp {
			t.Errorf("[page %d] expected physical address 0x%x; got 0x%x", i, exp, got)
		}
	}
}

func TestObjectAllocatorRecyclesSlotOnRetypeFailure(t *testing.T) {
	sim := sel4test.NewKernel()
	slots := NewSlotAllocator(64, 0x1000)
	alloc := NewObjectAllocator(sim, slots, 23)

	sim.FailOn["Retype"] = sel4.ErrNotEnoughMemory
	if _, err := alloc.AllocTCB(); err != sel4.ErrNotEnoughMemory {
		t.Fatalf("expected ErrNotEnoughMemory; got %v", err)
	}

	// The slot reserved for the failed retype must be reused next.
	cap, err := alloc.AllocTCB()
	if err != nil {
		t.Fatal(err)
	}
	if cap != 64 {
		t.Errorf("expected slot 64 to be recycled after failed retype; got %d", cap)
	}
}
