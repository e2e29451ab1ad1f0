// Package kfmt provides the logging facilities for the resource layer. Log
// output is written to a settable sink; output emitted before a sink is
// attached (during early boot, before the console is mapped) accumulates in
// a fixed-size ring buffer and is flushed once the sink appears.
//
// By convention log lines are prefixed with the emitting module in square
// brackets, e.g. "[vmm] mapped area".
package kfmt

import (
	"fmt"
	"io"
)

var (
	// earlyPrintBuffer is a ring buffer that stores Printf output before
	// the console has been initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is the io.Writer where Printf sends its output. If set to
	// nil, the output is redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf formats its arguments and writes them to the currently active
// sink. If no sink has been attached yet the output is buffered and
// replayed when one is.
func Printf(format string, args ...interface{}) {
	if outputSink == nil {
		fmt.Fprintf(&earlyPrintBuffer, format, args...)
		return
	}
	fmt.Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
