// Package uart drives the PL011 serial console write path. The device is
// assumed to be configured by firmware; this driver only transmits.
package uart

import (
	"unsafe"

	"selos/kernel/sync"
)

const (
	regDR = 0x00
	regFR = 0x18

	// frTxFull is set in the flag register while the transmit FIFO is
	// full.
	frTxFull = 1 << 5
)

// store32 and load32 perform the MMIO accesses. They are variables so
// tests can redirect them at a fake register file.
var (
	store32 = func(addr uintptr, val uint32) {
		*(*uint32)(unsafe.Pointer(addr)) = val
	}
	load32 = func(addr uintptr) uint32 {
		return *(*uint32)(unsafe.Pointer(addr))
	}
)

// PL011 is a transmit-only serial console. It implements io.Writer so it
// can be installed as a log sink.
type PL011 struct {
	lock sync.Spinlock
	base uintptr
}

// NewPL011 returns a driver for the device mapped at base.
func NewPL011(base uintptr) *PL011 {
	return &PL011{base: base}
}

func (u *PL011) putc(c byte) {
	for load32(u.base+regFR)&frTxFull != 0 {
	}
	store32(u.base+regDR, uint32(c))
}

// WriteByte transmits a single byte, expanding LF to CRLF for terminals.
func (u *PL011) WriteByte(c byte) error {
	u.lock.Acquire()
	defer u.lock.Release()

	u.writeByte(c)
	return nil
}

func (u *PL011) writeByte(c byte) {
	if c == '\n' {
		u.putc('\r')
	}
	u.putc(c)
}

// Write transmits data. It always succeeds from the caller's point of
// view; the device offers no error reporting.
func (u *PL011) Write(data []byte) (int, error) {
	u.lock.Acquire()
	defer u.lock.Release()

	for _, c := range data {
		u.writeByte(c)
	}
	return len(data), nil
}
