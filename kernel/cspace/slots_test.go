package cspace

import (
	"testing"

	"selos/kernel/sel4"
)

func TestSlotAllocatorIsMonotonic(t *testing.T) {
	alloc := NewSlotAllocator(64, 68)

	for i := 0; i < 4; i++ {
		slot, err := alloc.Alloc()
		if err != nil {
			t.Fatalf("[slot %d] unexpected error: %v", i, err)
		}
		if exp := sel4.CPtr(64 + i); slot != exp {
			t.Errorf("[slot %d] expected slot %d; got %d", i, exp, slot)
		}
	}

	if _, err := alloc.Alloc(); err != ErrSlotsExhausted {
		t.Errorf("expected ErrSlotsExhausted; got %v", err)
	}
}

func TestSlotAllocatorRecyclesLIFO(t *testing.T) {
	alloc := NewSlotAllocator(64, 0x1000)

	s0, _ := alloc.Alloc()
	s1, _ := alloc.Alloc()

	alloc.Recycle(s0)
	alloc.Recycle(s1)

	// The most recently recycled slot comes back first.
	if slot, _ := alloc.Alloc(); slot != s1 {
		t.Errorf("expected slot %d; got %d", s1, slot)
	}
	if slot, _ := alloc.Alloc(); slot != s0 {
		t.Errorf("expected slot %d; got %d", s0, slot)
	}
}

func TestSlotAllocatorRecycleUnblocksExhaustion(t *testing.T) {
	alloc := NewSlotAllocator(100, 101)

	slot, err := alloc.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := alloc.Alloc(); err != ErrSlotsExhausted {
		t.Fatalf("expected ErrSlotsExhausted; got %v", err)
	}

	alloc.Recycle(slot)
	got, err := alloc.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	if got != slot {
		t.Errorf("expected recycled slot %d; got %d", slot, got)
	}
}
