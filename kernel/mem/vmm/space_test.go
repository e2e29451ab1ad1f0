package vmm

import (
	"testing"

	"selos/kernel"
	"selos/kernel/config"
	"selos/kernel/cspace"
	"selos/kernel/mem"
	"selos/kernel/sel4"
	"selos/kernel/sel4/sel4test"
)

func newTestSpace() (*Space, *sel4test.Kernel, *cspace.SlotAllocator) {
	sim := sel4test.NewKernel()
	slots := cspace.NewSlotAllocator(config.SlotWindowStart, config.SlotWindowEnd)
	alloc := cspace.NewObjectAllocator(sim, slots, config.RootUntypedMemory)
	return NewSpace(sim, config.InitVSpace, alloc), sim, slots
}

func expectPanic(t *testing.T, expErr *kernel.Error, fn func()) {
	t.Helper()
	defer func() {
		if recovered := recover(); recovered != expErr {
			t.Fatalf("expected panic with %v; got %v", expErr, recovered)
		}
	}()
	fn()
}

func TestMapAreaRejectsMisalignedAddress(t *testing.T) {
	s, _, _ := newTestSpace()
	expectPanic(t, errMisalignedArea, func() {
		s.MapArea(0x40001000, mem.LargePageSize)
	})
}

func TestMapAreaRejectsZeroSize(t *testing.T) {
	s, _, _ := newTestSpace()
	expectPanic(t, errZeroSizeArea, func() {
		s.MapArea(0x40000000, 0)
	})
}

func TestMapAreaRecordsOneRegionPerLargePage(t *testing.T) {
	s, sim, _ := newTestSpace()

	const vaddr = uintptr(0x40000000)
	s.MapArea(vaddr, 3*mem.LargePageSize)

	if got := s.RegionCount(); got != 3 {
		t.Fatalf("expected 3 region entries; got %d", got)
	}

	for i := uintptr(0); i < 3; i++ {
		at := vaddr + i*uintptr(mem.LargePageSize)
		if _, ok := sim.Mappings[at]; !ok {
			t.Errorf("[page %d] expected a frame mapped at 0x%x", i, at)
		}
	}
}

func TestTranslationRoundTrip(t *testing.T) {
	s, _, _ := newTestSpace()

	const vaddr = uintptr(0x40000000)
	s.MapArea(vaddr, 2*mem.LargePageSize)

	// Probe addresses spread across both large pages, including offsets
	// that fall beyond the first page.
	offsets := []uintptr{0, 0x123, uintptr(mem.LargePageSize) - 1, uintptr(mem.LargePageSize) + 0x1000}
	for specIndex, off := range offsets {
		a := vaddr + off
		phys := s.VirtToPhys(a)
		if phys == a {
			t.Errorf("[spec %d] expected a non-identity translation for mapped address 0x%x", specIndex, a)
		}
		if got := s.PhysToVirt(phys); got != a {
			t.Errorf("[spec %d] expected round-trip to return 0x%x; got 0x%x", specIndex, a, got)
		}
	}
}

func TestTranslationIdentityFallback(t *testing.T) {
	s, _, _ := newTestSpace()

	// No covering region: both translations fall back to identity.
	const addr = uintptr(0xdead0000)
	if got := s.VirtToPhys(addr); got != addr {
		t.Errorf("expected identity fallback; got 0x%x", got)
	}
	if got := s.PhysToVirt(addr); got != addr {
		t.Errorf("expected identity fallback; got 0x%x", got)
	}
}

func TestInitSeedsBootHeapRegion(t *testing.T) {
	s, _, _ := newTestSpace()

	const heapPhys = uintptr(0x90000000)
	s.Init(heapPhys)

	probe := config.InitHeapBase + 0x2123
	if got := s.VirtToPhys(probe); got != heapPhys+0x2123 {
		t.Errorf("expected heap translation 0x%x; got 0x%x", heapPhys+0x2123, got)
	}
	if got := s.PhysToVirt(heapPhys + 0x2123); got != probe {
		t.Errorf("expected reverse heap translation 0x%x; got 0x%x", probe, got)
	}
}

func TestMapFrameInstallsMissingLevels(t *testing.T) {
	s, sim, _ := newTestSpace()

	const vaddr = uintptr(0x40000000)
	sim.MissingLevels[vaddr] = 2

	s.MapArea(vaddr, mem.LargePageSize)

	if got := len(sim.PageTableMaps); got != 2 {
		t.Fatalf("expected 2 page tables to be installed; got %d", got)
	}
	if _, ok := sim.Mappings[vaddr]; !ok {
		t.Error("expected the frame to be mapped after installing page tables")
	}
}

func TestMapFrameAbortsWhenRetriesExhausted(t *testing.T) {
	s, sim, _ := newTestSpace()

	const vaddr = uintptr(0x40000000)
	sim.MissingLevels[vaddr] = sel4.VSpaceLevels + 1

	expectPanic(t, errLevelRetries, func() {
		s.MapArea(vaddr, mem.LargePageSize)
	})
}

func TestAllocIPCBuffer(t *testing.T) {
	s, sim, slots := newTestSpace()
	taskAlloc := cspace.NewObjectAllocator(sim, slots, 25)

	vaddr, page, err := s.AllocIPCBuffer(taskAlloc)
	if err != nil {
		t.Fatal(err)
	}

	end := config.VirtFrameBase + uintptr(config.VirtFrameSize)
	if vaddr < config.VirtFrameBase || vaddr >= end {
		t.Errorf("expected IPC buffer address inside the frame window; got 0x%x", vaddr)
	}
	if got, ok := sim.Mappings[vaddr]; !ok || got != page {
		t.Errorf("expected page %d mapped at 0x%x", page, vaddr)
	}

	// Releasing the virtual page makes the same address available again.
	s.DeallocIPCBuffer(vaddr)
	again, _, err := s.AllocIPCBuffer(taskAlloc)
	if err != nil {
		t.Fatal(err)
	}
	if again != vaddr {
		t.Errorf("expected recycled address 0x%x; got 0x%x", vaddr, again)
	}
}

func TestAllocIPCBufferExhaustion(t *testing.T) {
	s, sim, slots := newTestSpace()
	taskAlloc := cspace.NewObjectAllocator(sim, slots, 25)

	s.frames = NewFrameAllocator(config.VirtFrameBase, mem.PageSize)

	if _, _, err := s.AllocIPCBuffer(taskAlloc); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.AllocIPCBuffer(taskAlloc); err != ErrNoVirtFrames {
		t.Fatalf("expected ErrNoVirtFrames; got %v", err)
	}
}

func TestAllocIPCBufferRecyclesPageSlotOnMapFailure(t *testing.T) {
	s, sim, _ := newTestSpace()

	// One slot: enough to retype the page, none left for the page table
	// the map will need.
	slots := cspace.NewSlotAllocator(200, 201)
	taskAlloc := cspace.NewObjectAllocator(sim, slots, 25)
	sim.MissingLevels[config.VirtFrameBase] = 1

	if _, _, err := s.AllocIPCBuffer(taskAlloc); err != cspace.ErrSlotsExhausted {
		t.Fatalf("expected ErrSlotsExhausted; got %v", err)
	}

	// The slot drawn for the page must be usable again.
	slot, err := slots.Alloc()
	if err != nil {
		t.Fatalf("expected the page slot to be recycled; got %v", err)
	}
	if slot != 200 {
		t.Errorf("expected recycled slot 200; got %d", slot)
	}
}

func TestAllocIPCBufferRollsBackPageOnFailure(t *testing.T) {
	s, sim, slots := newTestSpace()
	taskAlloc := cspace.NewObjectAllocator(sim, slots, 25)

	sim.FailOn["Retype"] = sel4.ErrNotEnoughMemory
	if _, _, err := s.AllocIPCBuffer(taskAlloc); err != sel4.ErrNotEnoughMemory {
		t.Fatalf("expected ErrNotEnoughMemory; got %v", err)
	}

	// The virtual page reserved for the failed allocation must be reused.
	vaddr, _, err := s.AllocIPCBuffer(taskAlloc)
	if err != nil {
		t.Fatal(err)
	}
	if exp := config.VirtFrameBase; vaddr != exp {
		t.Errorf("expected first window address 0x%x to be reused; got 0x%x", exp, vaddr)
	}
}
