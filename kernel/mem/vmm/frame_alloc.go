package vmm

import "selos/kernel/mem"

// FrameAllocator hands out virtual page numbers from the window reserved
// for task IPC buffers. Allocation prefers recently recycled pages (LIFO)
// and falls back to a monotonic bump counter; once the counter reaches the
// window end and nothing has been recycled the window is exhausted. That
// is a resource condition for the caller to handle, not a defect.
type FrameAllocator struct {
	current  uint
	end      uint
	recycled []uint
}

// NewFrameAllocator returns an allocator over the page range covering
// [base, base+size).
func NewFrameAllocator(base uintptr, size mem.Size) *FrameAllocator {
	return &FrameAllocator{
		current: uint(base >> mem.PageShift),
		end:     uint((base + uintptr(size)) >> mem.PageShift),
	}
}

// Alloc returns the next free virtual page number. The returned page is
// never concurrently held by another live allocation. ok is false once the
// window is spent and the recycle list is empty.
func (a *FrameAllocator) Alloc() (vpn uint, ok bool) {
	if n := len(a.recycled); n != 0 {
		vpn = a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return vpn, true
	}

	if a.current == a.end {
		return 0, false
	}

	vpn = a.current
	a.current++
	return vpn, true
}

// Dealloc returns a page number to the allocator. Page numbers that were
// never handed out, or are already on the recycle list, are ignored.
func (a *FrameAllocator) Dealloc(vpn uint) {
	if vpn >= a.current {
		return
	}
	for _, v := range a.recycled {
		if v == vpn {
			return
		}
	}
	a.recycled = append(a.recycled, vpn)
}
