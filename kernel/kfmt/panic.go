package kfmt

import "selos/kernel"

var errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}

// Panic outputs the supplied error (if not nil) to the active sink and
// aborts the current task via the Go runtime. It is used for violated
// internal invariants: conditions that indicate a broken precondition or a
// kernel bug and cannot be recovered locally.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** resource layer panic: task halted ***")
	Printf("\n-----------------------------------\n")

	if err != nil {
		panic(err)
	}
	panic(e)
}
