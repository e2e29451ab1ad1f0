package sel4

import "selos/kernel"

// Kernel invocation errors. These mirror the error codes reported by the
// microkernel; callers compare them by identity.
var (
	// ErrFailedLookup is reported by a frame map when an intermediate
	// translation level is missing.
	ErrFailedLookup = &kernel.Error{Module: "sel4", Message: "failed lookup"}

	// ErrNotEnoughMemory is reported when an untyped capability has no
	// room left for the requested retype.
	ErrNotEnoughMemory = &kernel.Error{Module: "sel4", Message: "not enough memory"}

	// ErrInvalidCapability is reported when a slot does not hold a
	// capability of the expected type.
	ErrInvalidCapability = &kernel.Error{Module: "sel4", Message: "invalid capability"}

	// ErrDeleteFirst is reported when a destination slot is already
	// occupied.
	ErrDeleteFirst = &kernel.Error{Module: "sel4", Message: "delete first"}

	// ErrRangeError is reported for out-of-range invocation arguments.
	ErrRangeError = &kernel.Error{Module: "sel4", Message: "range error"}
)
