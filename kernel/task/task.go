// Package task implements the execution-context capability bundle and its
// construction and destruction protocol. A task is a passive bundle: one
// thread-control capability, one private capability namespace, one server
// endpoint, one private object allocator over a single untyped unit and
// one mapped IPC buffer. Scheduling decisions belong to the hosting kernel
// personality; this layer only builds and tears the bundle down.
package task

import (
	"selos/kernel"
	"selos/kernel/config"
	"selos/kernel/cspace"
	"selos/kernel/kfmt"
	"selos/kernel/mem/untyped"
	"selos/kernel/mem/vmm"
	"selos/kernel/sel4"
)

// Deps bundles the singletons a task draws resources from. Construction
// and destruction must be serialized per task id by the caller; the
// underlying pools are individually locked.
type Deps struct {
	Inv   sel4.Invoker
	Slots *cspace.SlotAllocator
	Pool  *untyped.Pool
	Space *vmm.Space

	// RootTCB is the control thread. Scheduling parameters of new tasks
	// are set relative to it.
	RootTCB sel4.CPtr

	// ParentEP is the shared service endpoint minted into every task,
	// badged with the task id, so one physical endpoint serves all tasks
	// while the receiver tells senders apart by badge.
	ParentEP sel4.CPtr
}

// Task is one schedulable execution context.
//
// Lifecycle: Uninitialized -> Ready (New) -> Running (Start) <-> Suspended
// (Suspend) -> Destroyed (Destroy, terminal). A task must never be used
// after Destroy; that is a correctness precondition of the whole layer and
// is not separately enforced here.
type Task struct {
	deps Deps

	// Root-namespace slots owned by this task.
	TCB       sel4.CPtr
	CNode     sel4.CPtr
	EP        sel4.CPtr
	Untyped   sel4.CPtr
	IPCBuffer sel4.CPtr

	IPCBufferAddr uintptr
	Entry         uintptr
	Stack         uintptr
	TID           uint64

	// Alloc is the private object allocator over the task's untyped
	// unit.
	Alloc *cspace.ObjectAllocator
}

// guard implements scoped acquisition during construction: every
// intermediate resource registers a release which runs unless the guard is
// committed into the finished task.
type guard struct {
	releases  []func()
	committed bool
}

func (g *guard) onFail(f func()) {
	g.releases = append(g.releases, f)
}

func (g *guard) commit() {
	g.committed = true
}

func (g *guard) release() {
	if g.committed {
		return
	}
	for i := len(g.releases) - 1; i >= 0; i-- {
		g.releases[i]()
	}
}

// New constructs a task: private allocator, namespace, thread, endpoint,
// namespace population, IPC buffer, thread configuration and initial
// register file. A failure at any step rolls back every prior acquisition
// and is returned to the caller.
func New(deps Deps, tid uint64, entry, stack uintptr, priority uint8, tls uintptr) (*Task, *kernel.Error) {
	kfmt.Printf("[task] create task: tid %d, entry 0x%x, stack 0x%x\n", tid, entry, stack)

	g := &guard{}
	defer g.release()

	// One untyped unit backs every object this task owns.
	ut, _, err := deps.Pool.AllocUnit()
	if err != nil {
		return nil, err
	}
	g.onFail(func() {
		// Revoking the untyped reclaims everything retyped from it,
		// which makes the unit safe to hand out again.
		deps.Inv.Revoke(ut)
		deps.Pool.Recycle(ut)
	})
	alloc := cspace.NewObjectAllocator(deps.Inv, deps.Slots, ut)

	cnode, err := alloc.AllocCNode(config.CNodeRadixBits)
	if err != nil {
		return nil, err
	}
	g.onFail(func() { deps.Slots.Recycle(cnode) })

	tcb, err := alloc.AllocTCB()
	if err != nil {
		return nil, err
	}
	g.onFail(func() { deps.Slots.Recycle(tcb) })

	ep, err := alloc.AllocEndpoint()
	if err != nil {
		return nil, err
	}
	g.onFail(func() { deps.Slots.Recycle(ep) })

	// The task must be able to address its own thread capability.
	if err = deps.Inv.Copy(cnode, config.SlotChildTCB, config.CNodeRadixBits, tcb, sel4.RightsAll); err != nil {
		return nil, err
	}

	// Mint the shared service endpoint into the task, badged with the
	// task id.
	if err = deps.Inv.Mint(cnode, config.SlotParentEP, config.CNodeRadixBits, deps.ParentEP, sel4.RightsAll, sel4.Badge(tid)); err != nil {
		return nil, err
	}

	if err = deps.Inv.Copy(cnode, config.SlotServeEP, config.CNodeRadixBits, ep, sel4.RightsAll); err != nil {
		return nil, err
	}

	ipcAddr, ipcCap, err := deps.Space.AllocIPCBuffer(alloc)
	if err != nil {
		return nil, err
	}
	g.onFail(func() {
		deps.Space.DeallocIPCBuffer(ipcAddr)
		deps.Slots.Recycle(ipcCap)
	})

	if err = deps.Inv.TCBConfigure(tcb, deps.ParentEP, cnode,
		sel4.GuardSkipHighBits(config.CNodeRadixBits), deps.Space.VSpace(), ipcAddr, ipcCap); err != nil {
		return nil, err
	}

	if err = deps.Inv.TCBSetTLSBase(tcb, tls); err != nil {
		return nil, err
	}

	if err = deps.Inv.TCBSetSchedParams(tcb, deps.RootTCB, 0, priority); err != nil {
		return nil, err
	}

	// Initial register file: program counter, stack pointer, and the
	// register user space reads to discover its IPC buffer.
	regs, err := deps.Inv.TCBReadRegisters(tcb)
	if err != nil {
		return nil, err
	}
	regs.PC = entry
	regs.SP = stack
	regs.GPR[config.IPCBufferGPR] = uint64(ipcAddr)
	if err = deps.Inv.TCBWriteRegisters(tcb, &regs); err != nil {
		return nil, err
	}

	g.commit()
	return &Task{
		deps:          deps,
		TCB:           tcb,
		CNode:         cnode,
		EP:            ep,
		Untyped:       ut,
		IPCBuffer:     ipcCap,
		IPCBufferAddr: ipcAddr,
		Entry:         entry,
		Stack:         stack,
		TID:           tid,
		Alloc:         alloc,
	}, nil
}

// Start resumes the task's thread. A kernel failure is surfaced to the
// caller, not retried.
func (t *Task) Start() *kernel.Error {
	return t.deps.Inv.TCBResume(t.TCB)
}

// Suspend stops the task's thread.
func (t *Task) Suspend() *kernel.Error {
	return t.deps.Inv.TCBSuspend(t.TCB)
}

// Destroy tears the task down and releases every resource it holds. Each
// capability is revoked before it is deleted: copies minted into the
// task's own namespace must be invalidated everywhere before the original
// is removed. Kernel errors here are fatal; a half-destroyed task left
// live is worse than crashing.
func (t *Task) Destroy() {
	for _, slot := range []sel4.CPtr{t.TCB, t.CNode, t.EP, t.IPCBuffer} {
		if err := t.deps.Inv.Revoke(slot); err != nil {
			kfmt.Panic(err)
		}
		if err := t.deps.Inv.Delete(slot); err != nil {
			kfmt.Panic(err)
		}
		t.deps.Slots.Recycle(slot)
	}

	t.deps.Space.DeallocIPCBuffer(t.IPCBufferAddr)

	// Reclaim every object retyped from the task's unit so the pool can
	// hand it out clean.
	if err := t.deps.Inv.Revoke(t.Untyped); err != nil {
		kfmt.Panic(err)
	}
	t.deps.Pool.Recycle(t.Untyped)
}
