// Package sel4 defines the typed surface of the hosting capability-based
// microkernel. The kernel exposes no global namespaces: every page, thread,
// communication channel and interrupt source is addressed through an
// explicit capability that must be minted, copied, mapped or revoked via
// kernel calls. This package provides the capability address types, the
// object type enumeration and the Invoker interface through which every
// kernel call is issued.
package sel4

// CPtr is a capability pointer: the address of a capability slot within the
// calling task's root capability namespace.
type CPtr uint64

// Badge is a small integer attached to a capability alias. It is visible to
// the receiver of a signal or message sent through the alias and is used to
// discriminate the sender or source.
type Badge uint64

// Rights describes the access rights carried by a capability.
type Rights uint8

// Individual capability rights.
const (
	RightRead Rights = 1 << iota
	RightWrite
	RightGrant
	RightGrantReply
)

// RightsAll grants every right.
const RightsAll = RightRead | RightWrite | RightGrant | RightGrantReply

// ObjectType enumerates the kernel object types the resource layer deals
// in. Untyped memory is converted into the other types via Retype.
type ObjectType uint8

// Kernel object types.
const (
	ObjectUntyped ObjectType = iota
	ObjectTCB
	ObjectCNode
	ObjectEndpoint
	ObjectNotification
	ObjectPageTable
	ObjectPage
	ObjectLargePage
	ObjectIRQHandler
)

// VSpaceLevels is the number of address-translation levels on the target
// architecture. It bounds the map retry loop: a frame map can fail with a
// missing-level error at most once per level.
const VSpaceLevels = 4

// NumGPR is the number of general-purpose registers in a thread's register
// file.
const NumGPR = 31

// wordBits is the width of a capability address.
const wordBits = 64

// UserContext is a snapshot of a thread's register file.
type UserContext struct {
	PC      uintptr
	SP      uintptr
	TLSBase uintptr
	GPR     [NumGPR]uint64
}

// GuardSkipHighBits returns the namespace guard word for a namespace of the
// given radix, configured to skip the unused high bits of a capability
// address so that single-level addressing resolves in one step.
func GuardSkipHighBits(radixBits uint) uint64 {
	return uint64(wordBits - radixBits)
}
