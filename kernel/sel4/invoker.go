package sel4

import "selos/kernel"

// Invoker is the synchronous system-call surface of the hosting
// microkernel. Every method is a round-trip into the kernel:
// indistinguishable in control flow from an ordinary function call, but any
// of them may block the calling thread in the kernel. There is no
// cancellation; once a call is issued it runs to completion or fails.
//
// The resource layer receives a single Invoker at boot and passes it by
// reference to every component, so tests can substitute a simulated kernel.
type Invoker interface {
	// Retype converts part of the untyped capability ut into count objects
	// of type t, placing them in consecutive slots starting at dest.
	// sizeBits is only meaningful for variable-size objects (untyped
	// memory and capability namespaces).
	Retype(ut CPtr, t ObjectType, sizeBits uint, dest CPtr, count int) *kernel.Error

	// FrameGetAddress returns the physical address backing a frame
	// capability.
	FrameGetAddress(frame CPtr) (uintptr, *kernel.Error)

	// FrameMap maps a frame capability at vaddr in the given address
	// space. It fails with ErrFailedLookup when an intermediate
	// translation level is missing.
	FrameMap(frame, vspace CPtr, vaddr uintptr, rights Rights) *kernel.Error

	// PageTableMap installs a page-table capability at the translation
	// level covering vaddr.
	PageTableMap(pt, vspace CPtr, vaddr uintptr) *kernel.Error

	// Copy copies the capability held in the root-namespace slot src into
	// the slot addressed by index/depth of the namespace capability
	// destRoot.
	Copy(destRoot CPtr, index uint64, depth uint, src CPtr, rights Rights) *kernel.Error

	// Mint behaves like Copy but attaches a badge to the derived
	// capability.
	Mint(destRoot CPtr, index uint64, depth uint, src CPtr, rights Rights, badge Badge) *kernel.Error

	// MintToSlot mints the capability held in the root-namespace slot src
	// into the empty root-namespace slot dest with the supplied badge.
	MintToSlot(src, dest CPtr, rights Rights, badge Badge) *kernel.Error

	// Revoke removes every capability derived from the one held in the
	// given root-namespace slot. Revoking an untyped capability reclaims
	// all objects retyped from it.
	Revoke(slot CPtr) *kernel.Error

	// Delete removes the capability held in the given root-namespace slot.
	Delete(slot CPtr) *kernel.Error

	// TCBConfigure binds a thread to its capability namespace, address
	// space, IPC buffer and fault handler endpoint.
	TCBConfigure(tcb, faultEP, cspaceRoot CPtr, cspaceGuard uint64, vspace CPtr, ipcBufAddr uintptr, ipcBufFrame CPtr) *kernel.Error

	// TCBSetTLSBase sets the thread-local-storage base register.
	TCBSetTLSBase(tcb CPtr, base uintptr) *kernel.Error

	// TCBSetSchedParams sets the thread's maximum control priority and
	// priority relative to the authority thread.
	TCBSetSchedParams(tcb, authority CPtr, mcp, priority uint8) *kernel.Error

	// TCBReadRegisters returns a snapshot of the thread's register file.
	TCBReadRegisters(tcb CPtr) (UserContext, *kernel.Error)

	// TCBWriteRegisters replaces the thread's register file.
	TCBWriteRegisters(tcb CPtr, regs *UserContext) *kernel.Error

	// TCBResume makes the thread runnable.
	TCBResume(tcb CPtr) *kernel.Error

	// TCBSuspend stops the thread from running.
	TCBSuspend(tcb CPtr) *kernel.Error

	// TCBBindNotification binds a notification object to the thread so
	// signals on it are delivered as if sent to the thread directly.
	TCBBindNotification(tcb, notification CPtr) *kernel.Error

	// IRQControlGet obtains the interrupt-handler capability for irq from
	// the kernel's interrupt controller and places it in the
	// root-namespace slot dest.
	IRQControlGet(irq uint, dest CPtr) *kernel.Error

	// IRQSetNotification associates an interrupt handler with a
	// notification; each delivered interrupt signals the notification.
	IRQSetNotification(handler, notification CPtr) *kernel.Error

	// IRQAck acknowledges an interrupt, re-arming its source in the
	// kernel's interrupt controller.
	IRQAck(handler CPtr) *kernel.Error

	// Call performs a synchronous IPC call through an endpoint capability
	// and returns the reply label.
	Call(ep CPtr, label uint64, args ...uint64) (uint64, *kernel.Error)

	// DebugPutChar writes one byte to the kernel debug console.
	DebugPutChar(c byte)
}
