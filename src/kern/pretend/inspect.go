package pretend

import (
	"composure/src/kern"
)

// The methods in this file are not part of kern.Kernel; they let tests
// look inside the model.

// ObjectAt reports the type and size of the object named by c in the root
// CNode.
func (k *Kernel) ObjectAt(c kern.Cptr) (kern.ObjectType, uint8, bool) {
	rec, ok := k.lookup(c)
	if !ok {
		return 0, 0, false
	}
	return rec.obj.typ, rec.obj.sizeBits, true
}

// ObjectID returns the model identity of the object at c.  Two cptrs with
// the same id are capabilities over the same kernel object.
func (k *Kernel) ObjectID(c kern.Cptr) (uint64, bool) {
	rec, ok := k.lookup(c)
	if !ok {
		return 0, false
	}
	return rec.obj.id, true
}

// PaddrAt returns the model physical address of the object at c.
func (k *Kernel) PaddrAt(c kern.Cptr) (uint64, bool) {
	rec, ok := k.lookup(c)
	if !ok {
		return 0, false
	}
	return rec.obj.paddr, true
}

// SlotOccupied reports whether the root CNode slot at c holds a cap.
func (k *Kernel) SlotOccupied(c kern.Cptr) bool {
	_, ok := k.lookup(c)
	return ok
}

// RadixAt returns the radix of the CNode at c.
func (k *Kernel) RadixAt(c kern.Cptr) (uint8, bool) {
	rec, ok := k.lookup(c)
	if !ok || rec.obj.typ != kern.CNodeObject {
		return 0, false
	}
	return rec.obj.radix, true
}

// GuardAt returns the cap data programmed onto the cap at c.
func (k *Kernel) GuardAt(c kern.Cptr) (kern.CapData, bool) {
	rec, ok := k.lookup(c)
	if !ok {
		return kern.CapData{}, false
	}
	return rec.guard, true
}

// ChildSlotOccupied reports whether slot index of the CNode at cnode
// holds a cap.
func (k *Kernel) ChildSlotOccupied(cnode kern.Cptr, index uint64) bool {
	rec, ok := k.lookup(cnode)
	if !ok || rec.obj.typ != kern.CNodeObject {
		return false
	}
	_, occupied := rec.obj.slots[index]
	return occupied
}

// ASIDOf returns the address space identifier assigned to the paging root
// at c, zero when unassigned.
func (k *Kernel) ASIDOf(c kern.Cptr) (uint64, bool) {
	rec, ok := k.lookup(c)
	if !ok || !isPagingRoot(rec.obj) {
		return 0, false
	}
	return rec.obj.asid, true
}

// FrameIDAt returns the identity of the frame mapped at vaddr under the
// paging root at vroot.
func (k *Kernel) FrameIDAt(vroot kern.Cptr, vaddr uint64) (uint64, bool) {
	rec, ok := k.lookup(vroot)
	if !ok || !isPagingRoot(rec.obj) {
		return 0, false
	}
	fm, present := rec.obj.frames[vaddr>>pageSpan]
	if !present {
		return 0, false
	}
	return fm.obj.id, true
}

// MappedFrameCount returns how many frames are mapped under the paging
// root at vroot.
func (k *Kernel) MappedFrameCount(vroot kern.Cptr) int {
	rec, ok := k.lookup(vroot)
	if !ok || !isPagingRoot(rec.obj) {
		return 0
	}
	return len(rec.obj.frames)
}

// WriteByte stores b at offset zero-based within the frame mapped at
// vaddr under vroot, honoring mapping rights.
func (k *Kernel) WriteByte(vroot kern.Cptr, vaddr uint64, b byte) bool {
	rec, ok := k.lookup(vroot)
	if !ok || !isPagingRoot(rec.obj) {
		return false
	}
	fm, present := rec.obj.frames[vaddr>>pageSpan]
	if !present || fm.rights&kern.CanWrite == 0 {
		return false
	}
	if fm.obj.contents == nil {
		fm.obj.contents = make([]byte, 1<<pageSpan)
	}
	fm.obj.contents[vaddr&(1<<pageSpan-1)] = b
	return true
}

// ReadByte loads the byte at vaddr through the mapping under vroot.
func (k *Kernel) ReadByte(vroot kern.Cptr, vaddr uint64) (byte, bool) {
	rec, ok := k.lookup(vroot)
	if !ok || !isPagingRoot(rec.obj) {
		return 0, false
	}
	fm, present := rec.obj.frames[vaddr>>pageSpan]
	if !present || fm.rights&kern.CanRead == 0 {
		return 0, false
	}
	if fm.obj.contents == nil {
		return 0, true
	}
	return fm.obj.contents[vaddr&(1<<pageSpan-1)], true
}

// WatermarkOf returns how many bytes of the untyped at c have been
// consumed by retypes.
func (k *Kernel) WatermarkOf(c kern.Cptr) (uint64, bool) {
	rec, ok := k.lookup(c)
	if !ok || rec.obj.typ != kern.UntypedObject {
		return 0, false
	}
	return rec.obj.watermark, true
}
