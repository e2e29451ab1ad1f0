// Package kmain assembles the resource layer. Boot wires the allocators,
// the memory space, the console, the interrupt registry and the task
// machinery into a Platform; the hosting personality then drives task and
// interrupt lifecycle through it.
package kmain

import (
	"io"

	"selos/kernel"
	"selos/kernel/config"
	"selos/kernel/cspace"
	"selos/kernel/driver/uart"
	"selos/kernel/ipc"
	"selos/kernel/irq"
	"selos/kernel/kfmt"
	"selos/kernel/mem/untyped"
	"selos/kernel/mem/vmm"
	"selos/kernel/sel4"
	"selos/kernel/sync"
	"selos/kernel/task"
	"selos/kernel/time"
)

// ErrUnknownTask is returned for a task token that does not resolve.
var ErrUnknownTask = &kernel.Error{Module: "kmain", Message: "unknown task token"}

// BootConfig carries the boot parameters the parent personality hands
// over.
type BootConfig struct {
	// BootHeapPhys is the physical backing of the pre-mapped boot heap.
	BootHeapPhys uintptr

	// CounterFreq is the hardware counter frequency in ticks per second.
	CounterFreq uint64

	// Console overrides the log sink. When nil the PL011 at its
	// well-known physical address is used, unless DebugConsole is set.
	Console io.Writer

	// DebugConsole routes log output through the kernel debug console
	// instead of the PL011, for kernels built with debug printing when
	// no UART window is available.
	DebugConsole bool
}

// DebugConsole writes through the kernel debug-console call. It is the
// log sink of last resort; every byte is one kernel round-trip.
type DebugConsole struct {
	Inv sel4.Invoker
}

// Write implements io.Writer.
func (c DebugConsole) Write(p []byte) (int, error) {
	for _, b := range p {
		c.Inv.DebugPutChar(b)
	}
	return len(p), nil
}

// Platform is the assembled resource layer.
type Platform struct {
	Inv     sel4.Invoker
	Slots   *cspace.SlotAllocator
	Objects *cspace.ObjectAllocator
	Space   *vmm.Space
	Pool    *untyped.Pool
	IRQ     *irq.Registry
	Tasks   *task.Registry
	Parent  *ipc.Client
	Clock   *time.Clock

	tidLock sync.Spinlock
	nextTID uint64
}

// Boot brings the resource layer up: slot window, object factories, the
// memory space with its own backing mapped, the console sink, the untyped
// pool and the registries. Interrupt delivery is not armed here; call
// InitLater once the control thread is able to receive notifications.
func Boot(inv sel4.Invoker, cfg BootConfig) *Platform {
	slots := cspace.NewSlotAllocator(config.SlotWindowStart, config.SlotWindowEnd)
	objects := cspace.NewObjectAllocator(inv, slots, config.RootUntypedObjects)
	memAlloc := cspace.NewObjectAllocator(inv, slots, config.RootUntypedMemory)

	space := vmm.NewSpace(inv, config.InitVSpace, memAlloc)
	space.Init(cfg.BootHeapPhys)
	space.MapArea(config.VirtMemoryBase, config.VirtMemorySize)

	console := cfg.Console
	if console == nil {
		if cfg.DebugConsole {
			console = DebugConsole{Inv: inv}
		} else {
			console = uart.NewPL011(config.UARTPhysBase)
		}
	}
	kfmt.SetOutputSink(console)

	p := &Platform{
		Inv:     inv,
		Slots:   slots,
		Objects: objects,
		Space:   space,
		Pool:    untyped.NewPool(objects),
		IRQ:     irq.NewRegistry(inv, slots, objects),
		Tasks:   task.NewRegistry(),
		Parent:  ipc.NewClient(inv, config.ParentEndpoint),
		Clock:   time.NewClock(cfg.CounterFreq),
		nextTID: 1,
	}

	kfmt.Printf("[kmain] resource layer up, counter at %d Hz\n", cfg.CounterFreq)
	return p
}

// InitLater arms interrupt delivery. Split from Boot because the shared
// notification can only be bound once the control thread exists.
func (p *Platform) InitLater() {
	p.IRQ.Init(config.InitTCB)
}

func (p *Platform) taskDeps() task.Deps {
	return task.Deps{
		Inv:      p.Inv,
		Slots:    p.Slots,
		Pool:     p.Pool,
		Space:    p.Space,
		RootTCB:  config.InitTCB,
		ParentEP: config.ParentEndpoint,
	}
}

// CreateTask constructs a task, starts it and returns an opaque token the
// caller uses for later lifecycle operations.
func (p *Platform) CreateTask(entry, stack uintptr, priority uint8, tls uintptr) (uintptr, *kernel.Error) {
	p.tidLock.Acquire()
	tid := p.nextTID
	p.nextTID++
	p.tidLock.Release()

	t, err := task.New(p.taskDeps(), tid, entry, stack, priority, tls)
	if err != nil {
		return 0, err
	}
	if err = t.Start(); err != nil {
		t.Destroy()
		return 0, err
	}
	return p.Tasks.Export(t), nil
}

// SuspendTask stops the task behind token.
func (p *Platform) SuspendTask(token uintptr) *kernel.Error {
	t := p.Tasks.Resolve(token)
	if t == nil {
		return ErrUnknownTask
	}
	return t.Suspend()
}

// ResumeTask resumes the task behind token.
func (p *Platform) ResumeTask(token uintptr) *kernel.Error {
	t := p.Tasks.Resolve(token)
	if t == nil {
		return ErrUnknownTask
	}
	return t.Start()
}

// DestroyTask tears down the task behind token and releases the token.
// The thread is not suspended first: revoking its thread capability stops
// it, and a separate suspend could fail and leave a released but live
// task behind. Destruction is terminal; the token is invalid afterwards.
func (p *Platform) DestroyTask(token uintptr) *kernel.Error {
	t := p.Tasks.Release(token)
	if t == nil {
		return ErrUnknownTask
	}
	t.Destroy()
	return nil
}
