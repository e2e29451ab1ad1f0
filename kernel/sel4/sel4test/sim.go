// Package sel4test provides an in-memory simulation of the microkernel
// call surface. Tests construct a Kernel, hand it to the component under
// test as its sel4.Invoker and then assert on the recorded capability
// state: which objects were retyped, what was mapped where, which slots
// were revoked and deleted, and how often interrupt sources were
// acknowledged.
package sel4test

import (
	"selos/kernel"
	"selos/kernel/mem"
	"selos/kernel/sel4"
)

// Object describes one simulated capability held in a root-namespace slot.
type Object struct {
	Type     sel4.ObjectType
	SizeBits uint
	Badge    sel4.Badge

	// Parent is the untyped capability this object was retyped from.
	Parent sel4.CPtr

	// Source is the slot this capability was minted from, if any.
	Source sel4.CPtr

	// Phys is the simulated physical address for frame objects.
	Phys uintptr
}

// ChildCap records a capability copied or minted into a simulated child
// namespace.
type ChildCap struct {
	Source sel4.CPtr
	Badge  sel4.Badge
	Minted bool
}

// TCBState mirrors the configuration of one simulated thread.
type TCBState struct {
	Configured  bool
	FaultEP     sel4.CPtr
	CSpaceRoot  sel4.CPtr
	CSpaceGuard uint64
	VSpace      sel4.CPtr
	IPCBufAddr  uintptr
	IPCBufFrame sel4.CPtr

	TLSBase   uintptr
	Authority sel4.CPtr
	MCP       uint8
	Priority  uint8

	Running           bool
	Regs              sel4.UserContext
	BoundNotification sel4.CPtr
}

// CallRecord captures one endpoint call.
type CallRecord struct {
	EP    sel4.CPtr
	Label uint64
	Args  []uint64
}

// Kernel simulates the microkernel call surface. It implements
// sel4.Invoker.
type Kernel struct {
	Objects  map[sel4.CPtr]*Object
	Children map[sel4.CPtr]map[uint64]ChildCap
	TCBs     map[sel4.CPtr]*TCBState

	// Mappings tracks vaddr -> frame capability for every mapped frame.
	Mappings map[uintptr]sel4.CPtr

	// MissingLevels simulates absent intermediate translation levels: a
	// frame map into a large-page-aligned range with a non-zero entry
	// fails with ErrFailedLookup; each PageTableMap call into that range
	// decrements the entry.
	MissingLevels map[uintptr]int

	// PageTableMaps records the target address of every PageTableMap
	// call.
	PageTableMaps []uintptr

	// IRQHandlers tracks irq number -> handler slot for IRQControlGet.
	IRQHandlers map[uint]sel4.CPtr

	// IRQNotifications tracks handler slot -> notification slot.
	IRQNotifications map[sel4.CPtr]sel4.CPtr

	// AckCount counts IRQAck calls per handler slot.
	AckCount map[sel4.CPtr]int

	RevokeCount map[sel4.CPtr]int
	DeleteCount map[sel4.CPtr]int

	Calls      []CallRecord
	CallReturn uint64

	DebugOut []byte

	// FailOn injects a one-shot failure for the named invocation
	// ("Retype", "TCBSetTLSBase", ...). The entry is consumed when it
	// fires.
	FailOn map[string]*kernel.Error

	nextPhys uintptr
}

// NewKernel returns an empty simulated kernel. Physical frame addresses are
// handed out from a watermark, so frames retyped in sequence are
// physically contiguous, matching the behavior of the real object factory.
func NewKernel() *Kernel {
	return &Kernel{
		Objects:          make(map[sel4.CPtr]*Object),
		Children:         make(map[sel4.CPtr]map[uint64]ChildCap),
		TCBs:             make(map[sel4.CPtr]*TCBState),
		Mappings:         make(map[uintptr]sel4.CPtr),
		MissingLevels:    make(map[uintptr]int),
		IRQHandlers:      make(map[uint]sel4.CPtr),
		IRQNotifications: make(map[sel4.CPtr]sel4.CPtr),
		AckCount:         make(map[sel4.CPtr]int),
		RevokeCount:      make(map[sel4.CPtr]int),
		DeleteCount:      make(map[sel4.CPtr]int),
		FailOn:           make(map[string]*kernel.Error),
		nextPhys:         0x80000000,
	}
}

func (k *Kernel) fail(op string) *kernel.Error {
	if err, ok := k.FailOn[op]; ok {
		delete(k.FailOn, op)
		return err
	}
	return nil
}

func (k *Kernel) tcb(slot sel4.CPtr) *TCBState {
	st, ok := k.TCBs[slot]
	if !ok {
		st = &TCBState{}
		k.TCBs[slot] = st
	}
	return st
}

func objectSize(t sel4.ObjectType, sizeBits uint) uintptr {
	switch t {
	case sel4.ObjectPage:
		return uintptr(mem.PageSize)
	case sel4.ObjectLargePage:
		return uintptr(mem.LargePageSize)
	case sel4.ObjectUntyped:
		return uintptr(1) << sizeBits
	default:
		return uintptr(mem.PageSize)
	}
}

func tableKey(vaddr uintptr) uintptr {
	return vaddr &^ (uintptr(mem.LargePageSize) - 1)
}

// Retype implements sel4.Invoker.
func (k *Kernel) Retype(ut sel4.CPtr, t sel4.ObjectType, sizeBits uint, dest sel4.CPtr, count int) *kernel.Error {
	if err := k.fail("Retype"); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		slot := dest + sel4.CPtr(i)
		if _, ok := k.Objects[slot]; ok {
			return sel4.ErrDeleteFirst
		}

		obj := &Object{Type: t, SizeBits: sizeBits, Parent: ut, Phys: k.nextPhys}
		k.nextPhys += objectSize(t, sizeBits)
		k.Objects[slot] = obj
	}
	return nil
}

// FrameGetAddress implements sel4.Invoker.
func (k *Kernel) FrameGetAddress(frame sel4.CPtr) (uintptr, *kernel.Error) {
	if err := k.fail("FrameGetAddress"); err != nil {
		return 0, err
	}
	obj, ok := k.Objects[frame]
	if !ok {
		return 0, sel4.ErrInvalidCapability
	}
	return obj.Phys, nil
}

// FrameMap implements sel4.Invoker.
func (k *Kernel) FrameMap(frame, vspace sel4.CPtr, vaddr uintptr, rights sel4.Rights) *kernel.Error {
	if err := k.fail("FrameMap"); err != nil {
		return err
	}

	obj, ok := k.Objects[frame]
	if !ok || (obj.Type != sel4.ObjectPage && obj.Type != sel4.ObjectLargePage) {
		return sel4.ErrInvalidCapability
	}
	if k.MissingLevels[tableKey(vaddr)] > 0 {
		return sel4.ErrFailedLookup
	}

	k.Mappings[vaddr] = frame
	return nil
}

// PageTableMap implements sel4.Invoker.
func (k *Kernel) PageTableMap(pt, vspace sel4.CPtr, vaddr uintptr) *kernel.Error {
	if err := k.fail("PageTableMap"); err != nil {
		return err
	}

	obj, ok := k.Objects[pt]
	if !ok || obj.Type != sel4.ObjectPageTable {
		return sel4.ErrInvalidCapability
	}

	key := tableKey(vaddr)
	if k.MissingLevels[key] > 0 {
		k.MissingLevels[key]--
	}
	k.PageTableMaps = append(k.PageTableMaps, vaddr)
	return nil
}

func (k *Kernel) childSlots(root sel4.CPtr) map[uint64]ChildCap {
	slots, ok := k.Children[root]
	if !ok {
		slots = make(map[uint64]ChildCap)
		k.Children[root] = slots
	}
	return slots
}

// Copy implements sel4.Invoker.
func (k *Kernel) Copy(destRoot sel4.CPtr, index uint64, depth uint, src sel4.CPtr, rights sel4.Rights) *kernel.Error {
	if err := k.fail("Copy"); err != nil {
		return err
	}
	slots := k.childSlots(destRoot)
	if _, ok := slots[index]; ok {
		return sel4.ErrDeleteFirst
	}
	slots[index] = ChildCap{Source: src}
	return nil
}

// Mint implements sel4.Invoker.
func (k *Kernel) Mint(destRoot sel4.CPtr, index uint64, depth uint, src sel4.CPtr, rights sel4.Rights, badge sel4.Badge) *kernel.Error {
	if err := k.fail("Mint"); err != nil {
		return err
	}
	slots := k.childSlots(destRoot)
	if _, ok := slots[index]; ok {
		return sel4.ErrDeleteFirst
	}
	slots[index] = ChildCap{Source: src, Badge: badge, Minted: true}
	return nil
}

// MintToSlot implements sel4.Invoker.
func (k *Kernel) MintToSlot(src, dest sel4.CPtr, rights sel4.Rights, badge sel4.Badge) *kernel.Error {
	if err := k.fail("MintToSlot"); err != nil {
		return err
	}
	if _, ok := k.Objects[dest]; ok {
		return sel4.ErrDeleteFirst
	}

	obj := &Object{Source: src, Badge: badge}
	if srcObj, ok := k.Objects[src]; ok {
		obj.Type = srcObj.Type
	}
	k.Objects[dest] = obj
	return nil
}

// Revoke implements sel4.Invoker. Revoking a slot removes every simulated
// capability derived from it; revoking an untyped removes every object
// retyped from it along with its mappings.
func (k *Kernel) Revoke(slot sel4.CPtr) *kernel.Error {
	if err := k.fail("Revoke"); err != nil {
		return err
	}

	k.RevokeCount[slot]++
	for s, o := range k.Objects {
		if o.Parent == slot || o.Source == slot {
			k.removeObject(s)
		}
	}
	return nil
}

// Delete implements sel4.Invoker.
func (k *Kernel) Delete(slot sel4.CPtr) *kernel.Error {
	if err := k.fail("Delete"); err != nil {
		return err
	}
	if _, ok := k.Objects[slot]; !ok {
		return sel4.ErrInvalidCapability
	}

	k.removeObject(slot)
	k.DeleteCount[slot]++
	return nil
}

func (k *Kernel) removeObject(slot sel4.CPtr) {
	delete(k.Objects, slot)
	delete(k.Children, slot)
	for vaddr, frame := range k.Mappings {
		if frame == slot {
			delete(k.Mappings, vaddr)
		}
	}
}

// TCBConfigure implements sel4.Invoker.
func (k *Kernel) TCBConfigure(tcb, faultEP, cspaceRoot sel4.CPtr, cspaceGuard uint64, vspace sel4.CPtr, ipcBufAddr uintptr, ipcBufFrame sel4.CPtr) *kernel.Error {
	if err := k.fail("TCBConfigure"); err != nil {
		return err
	}
	st := k.tcb(tcb)
	st.Configured = true
	st.FaultEP = faultEP
	st.CSpaceRoot = cspaceRoot
	st.CSpaceGuard = cspaceGuard
	st.VSpace = vspace
	st.IPCBufAddr = ipcBufAddr
	st.IPCBufFrame = ipcBufFrame
	return nil
}

// TCBSetTLSBase implements sel4.Invoker.
func (k *Kernel) TCBSetTLSBase(tcb sel4.CPtr, base uintptr) *kernel.Error {
	if err := k.fail("TCBSetTLSBase"); err != nil {
		return err
	}
	k.tcb(tcb).TLSBase = base
	return nil
}

// TCBSetSchedParams implements sel4.Invoker.
func (k *Kernel) TCBSetSchedParams(tcb, authority sel4.CPtr, mcp, priority uint8) *kernel.Error {
	if err := k.fail("TCBSetSchedParams"); err != nil {
		return err
	}
	st := k.tcb(tcb)
	st.Authority = authority
	st.MCP = mcp
	st.Priority = priority
	return nil
}

// TCBReadRegisters implements sel4.Invoker.
func (k *Kernel) TCBReadRegisters(tcb sel4.CPtr) (sel4.UserContext, *kernel.Error) {
	if err := k.fail("TCBReadRegisters"); err != nil {
		return sel4.UserContext{}, err
	}
	return k.tcb(tcb).Regs, nil
}

// TCBWriteRegisters implements sel4.Invoker.
func (k *Kernel) TCBWriteRegisters(tcb sel4.CPtr, regs *sel4.UserContext) *kernel.Error {
	if err := k.fail("TCBWriteRegisters"); err != nil {
		return err
	}
	k.tcb(tcb).Regs = *regs
	return nil
}

// TCBResume implements sel4.Invoker.
func (k *Kernel) TCBResume(tcb sel4.CPtr) *kernel.Error {
	if err := k.fail("TCBResume"); err != nil {
		return err
	}
	k.tcb(tcb).Running = true
	return nil
}

// TCBSuspend implements sel4.Invoker.
func (k *Kernel) TCBSuspend(tcb sel4.CPtr) *kernel.Error {
	if err := k.fail("TCBSuspend"); err != nil {
		return err
	}
	k.tcb(tcb).Running = false
	return nil
}

// TCBBindNotification implements sel4.Invoker.
func (k *Kernel) TCBBindNotification(tcb, notification sel4.CPtr) *kernel.Error {
	if err := k.fail("TCBBindNotification"); err != nil {
		return err
	}
	k.tcb(tcb).BoundNotification = notification
	return nil
}

// IRQControlGet implements sel4.Invoker.
func (k *Kernel) IRQControlGet(irq uint, dest sel4.CPtr) *kernel.Error {
	if err := k.fail("IRQControlGet"); err != nil {
		return err
	}
	if _, ok := k.Objects[dest]; ok {
		return sel4.ErrDeleteFirst
	}
	k.Objects[dest] = &Object{Type: sel4.ObjectIRQHandler}
	k.IRQHandlers[irq] = dest
	return nil
}

// IRQSetNotification implements sel4.Invoker.
func (k *Kernel) IRQSetNotification(handler, notification sel4.CPtr) *kernel.Error {
	if err := k.fail("IRQSetNotification"); err != nil {
		return err
	}
	k.IRQNotifications[handler] = notification
	return nil
}

// IRQAck implements sel4.Invoker.
func (k *Kernel) IRQAck(handler sel4.CPtr) *kernel.Error {
	if err := k.fail("IRQAck"); err != nil {
		return err
	}
	k.AckCount[handler]++
	return nil
}

// Call implements sel4.Invoker.
func (k *Kernel) Call(ep sel4.CPtr, label uint64, args ...uint64) (uint64, *kernel.Error) {
	if err := k.fail("Call"); err != nil {
		return 0, err
	}
	k.Calls = append(k.Calls, CallRecord{EP: ep, Label: label, Args: append([]uint64(nil), args...)})
	return k.CallReturn, nil
}

// DebugPutChar implements sel4.Invoker.
func (k *Kernel) DebugPutChar(c byte) {
	k.DebugOut = append(k.DebugOut, c)
}
