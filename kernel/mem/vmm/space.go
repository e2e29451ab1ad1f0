// Package vmm implements the memory space: the single owner of the
// resource layer's virtual address map. It tracks virtual-to-physical
// region mappings, performs large-page and base-page mapping with
// on-demand page-table creation, answers translation queries and brokers
// IPC-buffer virtual pages for task construction.
package vmm

import (
	"sort"

	"selos/kernel"
	"selos/kernel/config"
	"selos/kernel/cspace"
	"selos/kernel/kfmt"
	"selos/kernel/mem"
	"selos/kernel/sel4"
	"selos/kernel/sync"
)

var (
	// ErrNoVirtFrames is returned when the IPC-buffer window is fully
	// allocated and nothing has been recycled.
	ErrNoVirtFrames = &kernel.Error{Module: "vmm", Message: "virtual frame window exhausted"}

	errMisalignedArea = &kernel.Error{Module: "vmm", Message: "map area address is not large-page aligned"}
	errZeroSizeArea   = &kernel.Error{Module: "vmm", Message: "map area size is zero"}
	errMisalignedPage = &kernel.Error{Module: "vmm", Message: "map address is not page aligned"}
	errLevelRetries   = &kernel.Error{Module: "vmm", Message: "page-table level retries exhausted"}
)

// region records one virtual-to-physical range established by this layer.
type region struct {
	virtStart uintptr
	physStart uintptr
	physEnd   uintptr
}

// Space owns the top-level address-space capability and all mapping
// bookkeeping. It is constructed explicitly and passed by reference to
// every component that maps or translates memory.
type Space struct {
	lock    sync.Spinlock
	regions []region // sorted by virtStart, non-overlapping

	frameLock sync.Spinlock
	frames    *FrameAllocator

	inv    sel4.Invoker
	vspace sel4.CPtr
	alloc  *cspace.ObjectAllocator
}

// NewSpace returns a memory space over the address-space capability
// vspace, drawing large pages and page tables from alloc.
func NewSpace(inv sel4.Invoker, vspace sel4.CPtr, alloc *cspace.ObjectAllocator) *Space {
	return &Space{
		inv:    inv,
		vspace: vspace,
		alloc:  alloc,
		frames: NewFrameAllocator(config.VirtFrameBase, config.VirtFrameSize),
	}
}

// VSpace returns the top-level address-space capability.
func (s *Space) VSpace() sel4.CPtr {
	return s.vspace
}

// Init seeds the region map with the boot heap: the one region that was
// mapped before this layer took ownership of the address space. heapPhys
// is its physical backing as reported by the parent personality.
func (s *Space) Init(heapPhys uintptr) {
	s.AddRegion(config.InitHeapBase, heapPhys, config.InitHeapSize)
}

// AddRegion records a mapping from vaddr to the physical range
// [paddr, paddr+size).
func (s *Space) AddRegion(vaddr, paddr uintptr, size mem.Size) {
	s.lock.Acquire()
	defer s.lock.Release()

	idx := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].virtStart >= vaddr
	})
	s.regions = append(s.regions, region{})
	copy(s.regions[idx+1:], s.regions[idx:])
	s.regions[idx] = region{virtStart: vaddr, physStart: paddr, physEnd: paddr + uintptr(size)}
}

// RegionCount returns the number of recorded regions.
func (s *Space) RegionCount() int {
	s.lock.Acquire()
	defer s.lock.Release()
	return len(s.regions)
}

// MapArea maps size bytes of freshly allocated physical memory at vaddr,
// one large page at a time. vaddr must be large-page aligned and size must
// be non-zero; violating either aborts, since a silently misaligned
// request would corrupt the page-table walk. The large pages come from the
// memory factory in a single batch and are physically contiguous.
func (s *Space) MapArea(vaddr uintptr, size mem.Size) {
	if vaddr%uintptr(mem.LargePageSize) != 0 {
		kfmt.Panic(errMisalignedArea)
	}
	if size == 0 {
		kfmt.Panic(errZeroSizeArea)
	}

	count := int(size / mem.LargePageSize)
	pages, err := s.alloc.AllocLargePages(count)
	if err != nil {
		kfmt.Panic(err)
	}

	paddr, err := s.inv.FrameGetAddress(pages[0])
	if err != nil {
		kfmt.Panic(err)
	}

	for i, page := range pages {
		off := uintptr(i) * uintptr(mem.LargePageSize)
		s.mapLargePage(vaddr+off, page)
		s.AddRegion(vaddr+off, paddr+off, mem.LargePageSize)
	}

	kfmt.Printf("[vmm] mapped area 0x%x - 0x%x\n", vaddr, vaddr+uintptr(size))
}

// mapLargePage maps one large-page frame at vaddr.
func (s *Space) mapLargePage(vaddr uintptr, frame sel4.CPtr) {
	if err := s.mapFrame(vaddr, frame, s.alloc, uintptr(mem.LargePageSize)); err != nil {
		kfmt.Panic(err)
	}
}

// MapPage maps one base-page frame at vaddr, drawing any missing page
// tables from the supplied allocator. An allocation failure is propagated;
// unexpected kernel errors abort.
func (s *Space) MapPage(vaddr uintptr, frame sel4.CPtr, alloc *cspace.ObjectAllocator) *kernel.Error {
	return s.mapFrame(vaddr, frame, alloc, uintptr(mem.PageSize))
}

// mapFrame attempts a direct frame map and, on a missing-level failure,
// installs one intermediate page table and retries. The loop is bounded by
// the number of translation levels; exhausting it means a broken invariant
// in the kernel or the factory and aborts.
func (s *Space) mapFrame(vaddr uintptr, frame sel4.CPtr, alloc *cspace.ObjectAllocator, align uintptr) *kernel.Error {
	if vaddr%align != 0 {
		kfmt.Panic(errMisalignedPage)
	}

	for level := 0; level < sel4.VSpaceLevels; level++ {
		err := s.inv.FrameMap(frame, s.vspace, vaddr, sel4.RightsAll)
		if err == nil {
			return nil
		}
		if err != sel4.ErrFailedLookup {
			kfmt.Panic(err)
		}

		// A translation level is missing; install one page table and
		// retry the frame map.
		pt, perr := alloc.AllocPageTable()
		if perr != nil {
			return perr
		}
		if err := s.inv.PageTableMap(pt, s.vspace, vaddr); err != nil {
			kfmt.Panic(err)
		}
	}

	kfmt.Panic(errLevelRetries)
	return errLevelRetries // unreachable
}

// VirtToPhys translates a virtual address previously produced by this
// layer's own mapping operations. An address outside every recorded
// region translates to itself: the identity fallback is a deliberate
// degraded-mode default, not an error.
func (s *Space) VirtToPhys(vaddr uintptr) uintptr {
	s.lock.Acquire()
	defer s.lock.Release()

	// Floor lookup: the covering region is the one with the greatest
	// start not above vaddr.
	idx := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].virtStart > vaddr
	}) - 1
	if idx >= 0 {
		r := s.regions[idx]
		if off := vaddr - r.virtStart; off < r.physEnd-r.physStart {
			return r.physStart + off
		}
	}

	return vaddr
}

// PhysToVirt is the reverse of VirtToPhys, with the same identity
// fallback. The mapping need not be unique; the first covering region
// wins.
func (s *Space) PhysToVirt(paddr uintptr) uintptr {
	s.lock.Acquire()
	defer s.lock.Release()

	for _, r := range s.regions {
		if r.physStart <= paddr && paddr < r.physEnd {
			return r.virtStart + (paddr - r.physStart)
		}
	}

	return paddr
}

// AllocIPCBuffer carves one virtual page out of the IPC-buffer window,
// backs it with a base page from the supplied per-task allocator and maps
// it. The returned address is where the new task will find its IPC
// buffer.
func (s *Space) AllocIPCBuffer(alloc *cspace.ObjectAllocator) (uintptr, sel4.CPtr, *kernel.Error) {
	s.frameLock.Acquire()
	vpn, ok := s.frames.Alloc()
	s.frameLock.Release()
	if !ok {
		return 0, 0, ErrNoVirtFrames
	}

	vaddr := uintptr(vpn) << mem.PageShift

	page, err := alloc.AllocPage()
	if err != nil {
		s.DeallocIPCBuffer(vaddr)
		return 0, 0, err
	}
	if err := s.MapPage(vaddr, page, alloc); err != nil {
		s.DeallocIPCBuffer(vaddr)
		// The retyped page is reclaimed by the eventual untyped revoke;
		// its slot must not be stranded with it.
		alloc.RecycleSlot(page)
		return 0, 0, err
	}

	return vaddr, page, nil
}

// DeallocIPCBuffer returns the virtual page behind vaddr to the frame
// allocator. The physical page is not unmapped here; it is reclaimed when
// the owning task's capabilities are revoked.
func (s *Space) DeallocIPCBuffer(vaddr uintptr) {
	s.frameLock.Acquire()
	s.frames.Dealloc(uint(vaddr >> mem.PageShift))
	s.frameLock.Release()
}
