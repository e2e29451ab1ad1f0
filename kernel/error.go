// Package kernel provides the error primitives shared by the resource-layer
// subsystems.
package kernel

// Error describes an error detected by one of the resource-management
// subsystems. All errors must be defined as global variables that are
// pointers to the Error structure. This allows callers to compare returned
// errors by identity without allocating.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
