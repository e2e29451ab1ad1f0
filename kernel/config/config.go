// Package config holds the platform layout for the resource layer: the
// well-known capability slots handed to the task at boot, the capability
// slot window it may allocate from, and the fixed virtual memory windows it
// manages.
package config

import (
	"selos/kernel/mem"
	"selos/kernel/sel4"
)

// Well-known root-namespace slots populated by the kernel and the parent
// before the resource layer starts.
const (
	// InitTCB is the control thread's own thread capability.
	InitTCB sel4.CPtr = 1

	// InitCNode is the root capability namespace.
	InitCNode sel4.CPtr = 2

	// InitVSpace is the top-level address-space capability.
	InitVSpace sel4.CPtr = 3

	// ParentEndpoint is the shared service endpoint of the parent
	// personality. It is minted into every task, badged with the task id.
	ParentEndpoint sel4.CPtr = 4

	// RootUntypedObjects backs the global object factory.
	RootUntypedObjects sel4.CPtr = 23

	// RootUntypedMemory backs the memory space's large-page allocator.
	RootUntypedMemory sel4.CPtr = 24
)

// Capability slot window available for allocation.
const (
	SlotWindowStart sel4.CPtr = 64
	SlotWindowEnd   sel4.CPtr = 0x1000
)

// CNodeRadixBits is the radix of every task's private capability
// namespace.
const CNodeRadixBits uint = 12

// Well-known slots inside a task's private namespace. Every task can
// address its own thread capability and both endpoints at fixed indices.
const (
	SlotChildTCB uint64 = 1
	SlotParentEP uint64 = 2
	SlotServeEP  uint64 = 3
)

// IPCBufferGPR is the general-purpose register loaded with the IPC buffer
// address before a task first runs; user space discovers its IPC buffer by
// reading it.
const IPCBufferGPR = 8

// Virtual memory layout.
const (
	// VirtMemoryBase/VirtMemorySize delimit the window the memory space
	// maps for its own backing at boot.
	VirtMemoryBase uintptr  = 0x40000000
	VirtMemorySize mem.Size = 128 * mem.Mb

	// VirtFrameBase/VirtFrameSize delimit the window reserved for task
	// IPC-buffer pages.
	VirtFrameBase uintptr  = 0x20000000
	VirtFrameSize mem.Size = 1 * mem.Mb

	// InitHeapBase/InitHeapSize delimit the boot heap mapped before the
	// memory space took ownership of the address map.
	InitHeapBase uintptr  = 0x10000000
	InitHeapSize mem.Size = 8 * mem.Mb

	// UARTPhysBase is the physical address of the PL011 console.
	UARTPhysBase uintptr = 0x09000000
)
