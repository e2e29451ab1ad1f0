// Package irq multiplexes hardware interrupts onto a single notification
// object. Every registered interrupt gets a handler capability from the
// kernel's interrupt controller plus a badged alias of the shared
// notification; inbound badges are demultiplexed through a fixed handler
// table and the specific handler capability is acknowledged after the
// handler runs, so the same interrupt is never redelivered while it is
// still being serviced.
package irq

import (
	"selos/kernel"
	"selos/kernel/cspace"
	"selos/kernel/kfmt"
	"selos/kernel/sel4"
	"selos/kernel/sync"
)

// NumIRQs bounds the handler table.
const NumIRQs = 1024

// ErrDisableUnsupported is returned when a caller asks for an interrupt to
// be disabled. The controller contract only supports enabling; existing
// registrations stay armed until they are unregistered.
var ErrDisableUnsupported = &kernel.Error{Module: "irq", Message: "disabling an interrupt source is not supported"}

var errBadIRQ = &kernel.Error{Module: "irq", Message: "interrupt number out of range"}

// Handler is invoked in the dispatch context with the interrupt number
// that fired.
type Handler func(irq uint)

// record holds the two capabilities backing one armed interrupt: the
// controller handler and the badged alias of the shared notification.
type record struct {
	handler      sel4.CPtr
	notification sel4.CPtr
}

// Registry maps interrupt numbers to handlers and owns the capability
// plumbing behind them.
type Registry struct {
	lock sync.Spinlock

	inv     sel4.Invoker
	slots   *cspace.SlotAllocator
	objects *cspace.ObjectAllocator

	// notification is the single shared notification every interrupt is
	// multiplexed onto.
	notification sel4.CPtr

	enabled  bool
	handlers [NumIRQs]Handler
	records  [NumIRQs]*record
}

// NewRegistry returns a registry that draws capabilities from objects and
// slots. It is inert until Init binds it to the control thread.
func NewRegistry(inv sel4.Invoker, slots *cspace.SlotAllocator, objects *cspace.ObjectAllocator) *Registry {
	return &Registry{inv: inv, slots: slots, objects: objects}
}

// Init allocates the shared notification, binds it to the control thread
// and enables registration. Interrupt badges are then delivered to tcb as
// notification signals. A kernel failure here is fatal; no interrupt can
// ever be delivered without the binding.
func (r *Registry) Init(tcb sel4.CPtr) {
	notification, err := r.objects.AllocNotification()
	if err != nil {
		kfmt.Panic(err)
	}
	if err = r.inv.TCBBindNotification(tcb, notification); err != nil {
		kfmt.Panic(err)
	}

	r.lock.Acquire()
	r.notification = notification
	r.enabled = true
	r.lock.Release()
}

// Notification returns the shared notification capability.
func (r *Registry) Notification() sel4.CPtr {
	r.lock.Acquire()
	defer r.lock.Release()
	return r.notification
}

// EnableAll permits interrupt registration.
func (r *Registry) EnableAll() {
	r.lock.Acquire()
	r.enabled = true
	r.lock.Release()
}

// DisableAll blocks further arming. Interrupts already armed keep firing;
// tearing them down requires Unregister.
func (r *Registry) DisableAll() {
	r.lock.Acquire()
	r.enabled = false
	r.lock.Release()
}

// Enabled reports whether arming is currently permitted.
func (r *Registry) Enabled() bool {
	r.lock.Acquire()
	defer r.lock.Release()
	return r.enabled
}

// Register installs fn as the handler for irq and arms the interrupt
// source. It returns false if a handler is already installed, leaving the
// existing registration intact. Kernel failures while arming are fatal.
func (r *Registry) Register(irq uint, fn Handler) bool {
	if irq >= NumIRQs {
		return false
	}

	r.lock.Acquire()
	if r.handlers[irq] != nil {
		r.lock.Release()
		return false
	}
	r.handlers[irq] = fn
	r.lock.Release()

	if err := r.SetEnable(irq, true); err != nil {
		kfmt.Panic(err)
	}
	return true
}

// Unregister removes the registration for irq and returns the previous
// handler, or nil if none was installed. Both capabilities behind the
// registration are revoked, deleted and their slots recycled.
func (r *Registry) Unregister(irq uint) Handler {
	if irq >= NumIRQs {
		return nil
	}

	r.lock.Acquire()
	prev := r.handlers[irq]
	rec := r.records[irq]
	r.handlers[irq] = nil
	r.records[irq] = nil
	r.lock.Release()

	if rec != nil {
		for _, slot := range []sel4.CPtr{rec.handler, rec.notification} {
			if err := r.inv.Revoke(slot); err != nil {
				kfmt.Panic(err)
			}
			if err := r.inv.Delete(slot); err != nil {
				kfmt.Panic(err)
			}
			r.slots.Recycle(slot)
		}
	}
	return prev
}

// SetEnable arms (enable == true) the interrupt source for irq. Arming is
// honored only while the registry is globally enabled; an already-armed
// interrupt is left alone. Disabling is not implemented and reports
// ErrDisableUnsupported.
func (r *Registry) SetEnable(irq uint, enable bool) *kernel.Error {
	if !enable {
		kfmt.Printf("[irq] ignoring request to disable irq %d\n", irq)
		return ErrDisableUnsupported
	}
	if irq >= NumIRQs {
		return errBadIRQ
	}

	r.lock.Acquire()
	enabled := r.enabled
	armed := r.records[irq] != nil
	notification := r.notification
	r.lock.Release()

	if !enabled {
		kfmt.Printf("[irq] registry disabled; irq %d not armed\n", irq)
		return nil
	}
	if armed {
		return nil
	}

	// Arming issues kernel calls, so the lock is not held across it.
	// Concurrent arming of the same irq is excluded by the caller, like
	// all lifecycle operations on a single resource.
	rec := r.arm(irq, notification)

	r.lock.Acquire()
	r.records[irq] = rec
	r.lock.Release()
	return nil
}

// arm builds the capability pair for irq: a badged alias of the shared
// notification, a handler capability from the interrupt controller, their
// association, and one initial acknowledgment so delivery can begin. Any
// failure is fatal.
func (r *Registry) arm(irq uint, notification sel4.CPtr) *record {
	notifAlias, err := r.slots.Alloc()
	if err != nil {
		kfmt.Panic(err)
	}
	if err = r.inv.MintToSlot(notification, notifAlias, sel4.RightsAll, sel4.Badge(irq)); err != nil {
		kfmt.Panic(err)
	}

	handler, err := r.slots.Alloc()
	if err != nil {
		kfmt.Panic(err)
	}
	if err = r.inv.IRQControlGet(irq, handler); err != nil {
		kfmt.Panic(err)
	}
	if err = r.inv.IRQSetNotification(handler, notifAlias); err != nil {
		kfmt.Panic(err)
	}
	if err = r.inv.IRQAck(handler); err != nil {
		kfmt.Panic(err)
	}

	return &record{handler: handler, notification: notifAlias}
}

// Dispatch demultiplexes one inbound notification badge: the registered
// handler runs first and the interrupt is acknowledged after it returns,
// so the controller cannot redeliver the same event mid-handler. A badge
// with no handler is logged and dropped. The registry lock is not held
// while the handler runs.
func (r *Registry) Dispatch(badge sel4.Badge) {
	irq := uint(badge)
	if irq >= NumIRQs {
		kfmt.Printf("[irq] spurious badge %d\n", badge)
		return
	}

	r.lock.Acquire()
	fn := r.handlers[irq]
	rec := r.records[irq]
	r.lock.Release()

	if fn == nil {
		kfmt.Printf("[irq] no handler registered for irq %d\n", irq)
	} else {
		fn(irq)
	}

	if rec != nil {
		if err := r.inv.IRQAck(rec.handler); err != nil {
			kfmt.Panic(err)
		}
	}
}
