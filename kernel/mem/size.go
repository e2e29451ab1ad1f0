// Package mem declares the memory size primitives shared by the allocators
// and the memory space.
package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
)

const (
	// PageSize is the base translation granule.
	PageSize Size = 4 * Kb

	// PageShift is the number of address bits covered by a base page.
	PageShift = 12

	// LargePageSize is the large-page granule. Area mapping operates
	// exclusively at this granularity.
	LargePageSize Size = 2 * Mb

	// LargePageShift is the number of address bits covered by a large
	// page.
	LargePageShift = 21
)
