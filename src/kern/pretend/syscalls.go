package pretend

import (
	"composure/src/kern"
)

func (k *Kernel) UntypedRetype(ut kern.Cptr, objType kern.ObjectType, sizeBits uint8, dest kern.DestSlot, count uint64) error {
	k.count(kern.CallUntypedRetype)
	rec, ok := k.lookup(ut)
	if !ok || rec.obj.typ != kern.UntypedObject {
		return kern.Fail(kern.CallUntypedRetype, kern.CodeInvalidCapability)
	}
	if count < 1 || count > kern.KernelRetypeFanOutLimit {
		return kern.Fail(kern.CallUntypedRetype, kern.CodeRangeError)
	}
	var objBits uint8
	switch objType {
	case kern.UntypedObject:
		objBits = sizeBits
	case kern.CNodeObject:
		objBits = sizeBits + kern.SlotBits
	default:
		fixed, ok := objType.FixedSizeBits()
		if !ok {
			return kern.Fail(kern.CallUntypedRetype, kern.CodeInvalidArgument)
		}
		objBits = fixed
	}
	if rec.obj.device && objType != kern.UntypedObject && objType != kern.SmallPageObject {
		return kern.Fail(kern.CallUntypedRetype, kern.CodeIllegalOperation)
	}
	cn, base, ok := k.resolveSlot(dest)
	if !ok {
		return kern.Fail(kern.CallUntypedRetype, kern.CodeFailedLookup)
	}
	for i := uint64(0); i < count; i++ {
		if _, occupied := cn.slots[base+i]; occupied {
			return kern.Fail(kern.CallUntypedRetype, kern.CodeDeleteFirst)
		}
	}
	utSize := uint64(1) << rec.obj.sizeBits
	objSize := uint64(1) << objBits
	offset := (rec.obj.watermark + objSize - 1) &^ (objSize - 1)
	if offset+objSize*count > utSize {
		return kern.Fail(kern.CallUntypedRetype, kern.CodeNotEnoughMemory)
	}
	for i := uint64(0); i < count; i++ {
		o := k.newObject(objType, objBits)
		o.paddr = rec.obj.paddr + offset + i*objSize
		o.device = rec.obj.device
		switch objType {
		case kern.CNodeObject:
			o.radix = sizeBits
			o.slots = make(map[uint64]*capRecord)
		case kern.ASIDPoolObject:
			o.remaining = kern.ASIDPoolSize
		case kern.PageGlobalDirectoryObject, kern.PageDirectoryObject:
			o.tables = make(map[kern.ObjectType]map[uint64]*object)
			o.frames = make(map[uint64]*frameMapping)
		}
		child := &capRecord{obj: o, rights: kern.AllRights, parent: rec}
		rec.children = append(rec.children, child)
		k.install(cn, base+i, child)
	}
	rec.obj.watermark = offset + objSize*count
	return nil
}

func (k *Kernel) copyLike(call kern.APICall, dest kern.DestSlot, src kern.DestSlot, rights kern.CapRights, badge kern.Badge, minted bool) error {
	k.count(call)
	scn, sidx, ok := k.resolveSlot(src)
	if !ok {
		return kern.Fail(call, kern.CodeFailedLookup)
	}
	srec, ok := scn.slots[sidx]
	if !ok {
		return kern.Fail(call, kern.CodeFailedLookup)
	}
	if minted && srec.obj.typ != kern.EndpointObject && srec.obj.typ != kern.NotificationObject {
		return kern.Fail(call, kern.CodeIllegalOperation)
	}
	dcn, didx, ok := k.resolveSlot(dest)
	if !ok {
		return kern.Fail(call, kern.CodeFailedLookup)
	}
	if _, occupied := dcn.slots[didx]; occupied {
		return kern.Fail(call, kern.CodeDeleteFirst)
	}
	if !rights.Subset(srec.rights) {
		return kern.Fail(call, kern.CodeInvalidArgument)
	}
	child := &capRecord{obj: srec.obj, rights: rights, badge: badge, parent: srec}
	srec.children = append(srec.children, child)
	k.install(dcn, didx, child)
	return nil
}

func (k *Kernel) CNodeCopy(dest kern.DestSlot, src kern.DestSlot, rights kern.CapRights) error {
	return k.copyLike(kern.CallCNodeCopy, dest, src, rights, 0, false)
}

func (k *Kernel) CNodeMint(dest kern.DestSlot, src kern.DestSlot, rights kern.CapRights, badge kern.Badge) error {
	return k.copyLike(kern.CallCNodeMint, dest, src, rights, badge, true)
}

func (k *Kernel) moveLike(call kern.APICall, dest kern.DestSlot, src kern.DestSlot, data *kern.CapData) error {
	k.count(call)
	scn, sidx, ok := k.resolveSlot(src)
	if !ok {
		return kern.Fail(call, kern.CodeFailedLookup)
	}
	srec, ok := scn.slots[sidx]
	if !ok {
		return kern.Fail(call, kern.CodeFailedLookup)
	}
	dcn, didx, ok := k.resolveSlot(dest)
	if !ok {
		return kern.Fail(call, kern.CodeFailedLookup)
	}
	if _, occupied := dcn.slots[didx]; occupied {
		return kern.Fail(call, kern.CodeDeleteFirst)
	}
	delete(scn.slots, sidx)
	if data != nil {
		srec.guard = *data
	}
	k.install(dcn, didx, srec)
	return nil
}

func (k *Kernel) CNodeMove(dest kern.DestSlot, src kern.DestSlot) error {
	return k.moveLike(kern.CallCNodeMove, dest, src, nil)
}

func (k *Kernel) CNodeMutate(dest kern.DestSlot, src kern.DestSlot, data kern.CapData) error {
	return k.moveLike(kern.CallCNodeMutate, dest, src, &data)
}

func (k *Kernel) CNodeDelete(slot kern.DestSlot) error {
	k.count(kern.CallCNodeDelete)
	cn, idx, ok := k.resolveSlot(slot)
	if !ok {
		return kern.Fail(kern.CallCNodeDelete, kern.CodeFailedLookup)
	}
	rec, ok := cn.slots[idx]
	if !ok {
		// deleting an empty slot is a no-op
		return nil
	}
	k.deleteRecord(rec)
	return nil
}

func (k *Kernel) CNodeRevoke(slot kern.DestSlot) error {
	k.count(kern.CallCNodeRevoke)
	cn, idx, ok := k.resolveSlot(slot)
	if !ok {
		return kern.Fail(kern.CallCNodeRevoke, kern.CodeFailedLookup)
	}
	rec, ok := cn.slots[idx]
	if !ok {
		return nil
	}
	for len(rec.children) > 0 {
		k.deleteRecord(rec.children[0])
	}
	return nil
}

// deleteRecord removes rec from its slot and recursively removes its
// derived caps.  A mapped page cap is unmapped on the way out.
func (k *Kernel) deleteRecord(rec *capRecord) {
	for len(rec.children) > 0 {
		k.deleteRecord(rec.children[0])
	}
	if rec.mapped != nil {
		delete(rec.mapped.root.frames, rec.mapped.vaddr>>pageSpan)
		rec.mapped = nil
	}
	if rec.cnode != nil {
		if rec.cnode.slots[rec.index] == rec {
			delete(rec.cnode.slots, rec.index)
		}
		rec.cnode = nil
	}
	if rec.parent != nil {
		siblings := rec.parent.children
		for i, c := range siblings {
			if c == rec {
				rec.parent.children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
		rec.parent = nil
	}
}

func (k *Kernel) ASIDControlMakePool(ctrl kern.Cptr, ut kern.Cptr, dest kern.DestSlot) error {
	k.count(kern.CallASIDControlMakePool)
	crec, ok := k.lookup(ctrl)
	if !ok || crec.obj.typ != objectASIDControl {
		return kern.Fail(kern.CallASIDControlMakePool, kern.CodeInvalidCapability)
	}
	if crec.obj.remaining == 0 {
		return kern.Fail(kern.CallASIDControlMakePool, kern.CodeNotEnoughMemory)
	}
	urec, ok := k.lookup(ut)
	if !ok || urec.obj.typ != kern.UntypedObject || urec.obj.sizeBits < kern.ASIDPoolBits {
		return kern.Fail(kern.CallASIDControlMakePool, kern.CodeInvalidCapability)
	}
	cn, idx, ok := k.resolveSlot(dest)
	if !ok {
		return kern.Fail(kern.CallASIDControlMakePool, kern.CodeFailedLookup)
	}
	if _, occupied := cn.slots[idx]; occupied {
		return kern.Fail(kern.CallASIDControlMakePool, kern.CodeDeleteFirst)
	}
	pool := k.newObject(kern.ASIDPoolObject, kern.ASIDPoolBits)
	pool.remaining = kern.ASIDPoolSize
	child := &capRecord{obj: pool, rights: kern.AllRights, parent: urec}
	urec.children = append(urec.children, child)
	k.install(cn, idx, child)
	crec.obj.remaining--
	urec.obj.watermark = 1 << urec.obj.sizeBits
	return nil
}

func (k *Kernel) ASIDPoolAssign(pool kern.Cptr, vroot kern.Cptr) error {
	k.count(kern.CallASIDPoolAssign)
	prec, ok := k.lookup(pool)
	if !ok || prec.obj.typ != kern.ASIDPoolObject {
		return kern.Fail(kern.CallASIDPoolAssign, kern.CodeInvalidCapability)
	}
	vrec, ok := k.lookup(vroot)
	if !ok || !isPagingRoot(vrec.obj) {
		return kern.Fail(kern.CallASIDPoolAssign, kern.CodeInvalidCapability)
	}
	if vrec.obj.asid != 0 {
		return kern.Fail(kern.CallASIDPoolAssign, kern.CodeIllegalOperation)
	}
	if prec.obj.remaining == 0 {
		return kern.Fail(kern.CallASIDPoolAssign, kern.CodeNotEnoughMemory)
	}
	vrec.obj.asid = k.nextASID
	k.nextASID++
	prec.obj.remaining--
	return nil
}

func isPagingRoot(o *object) bool {
	return o.typ == kern.PageGlobalDirectoryObject || o.typ == kern.PageDirectoryObject
}

// parentLevel names which installed level must already cover a vaddr for
// a map of childType into root to succeed; the bool says the root itself
// is the parent.
func parentLevel(root *object, childType kern.ObjectType) (kern.ObjectType, uint8, bool, bool) {
	if root.typ == kern.PageGlobalDirectoryObject {
		switch childType {
		case kern.PageUpperDirectoryObject:
			return 0, 0, true, true
		case kern.PageDirectoryObject:
			return kern.PageUpperDirectoryObject, pudSpan, false, true
		case kern.PageTableObject:
			return kern.PageDirectoryObject, pdSpan, false, true
		case kern.SmallPageObject:
			return kern.PageTableObject, ptSpan, false, true
		}
		return 0, 0, false, false
	}
	// two-level root: a bare page directory
	switch childType {
	case kern.PageTableObject:
		return 0, 0, true, true
	case kern.SmallPageObject:
		return kern.PageTableObject, ptSpan, false, true
	}
	return 0, 0, false, false
}

func (k *Kernel) mapIntermediate(call kern.APICall, obj kern.Cptr, objType kern.ObjectType, vroot kern.Cptr, vaddr uint64) error {
	k.count(call)
	rec, ok := k.lookup(obj)
	if !ok || rec.obj.typ != objType {
		return kern.Fail(call, kern.CodeInvalidCapability)
	}
	if rec.mapped != nil {
		return kern.Fail(call, kern.CodeInvalidCapability)
	}
	vrec, ok := k.lookup(vroot)
	if !ok || !isPagingRoot(vrec.obj) {
		return kern.Fail(call, kern.CodeInvalidCapability)
	}
	root := vrec.obj
	parentType, parentSpan, rootIsParent, legal := parentLevel(root, objType)
	if !legal {
		return kern.Fail(call, kern.CodeIllegalOperation)
	}
	if !rootIsParent {
		if _, present := root.tables[parentType][vaddr>>parentSpan]; !present {
			return kern.Fail(call, kern.CodeFailedLookup)
		}
	}
	span := spanOf(objType)
	if root.tables[objType] == nil {
		root.tables[objType] = make(map[uint64]*object)
	}
	if _, present := root.tables[objType][vaddr>>span]; present {
		return kern.Fail(call, kern.CodeDeleteFirst)
	}
	root.tables[objType][vaddr>>span] = rec.obj
	rec.mapped = &mapping{root: root, vaddr: vaddr &^ (1<<span - 1)}
	return nil
}

// spanOf gives the number of vaddr bits one object of this level covers.
func spanOf(t kern.ObjectType) uint8 {
	switch t {
	case kern.SmallPageObject:
		return pageSpan
	case kern.PageTableObject:
		return ptSpan
	case kern.PageDirectoryObject:
		return pdSpan
	case kern.PageUpperDirectoryObject:
		return pudSpan
	}
	return 0
}

func (k *Kernel) PageTableMap(pt kern.Cptr, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error {
	return k.mapIntermediate(kern.CallPageTableMap, pt, kern.PageTableObject, vroot, vaddr)
}

func (k *Kernel) PageDirectoryMap(pd kern.Cptr, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error {
	return k.mapIntermediate(kern.CallPageDirectoryMap, pd, kern.PageDirectoryObject, vroot, vaddr)
}

func (k *Kernel) PageUpperDirectoryMap(pud kern.Cptr, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error {
	return k.mapIntermediate(kern.CallPageUpperDirectoryMap, pud, kern.PageUpperDirectoryObject, vroot, vaddr)
}

func (k *Kernel) PageMap(page kern.Cptr, vroot kern.Cptr, vaddr uint64, rights kern.CapRights, attrs kern.VMAttributes) error {
	k.count(kern.CallPageMap)
	rec, ok := k.lookup(page)
	if !ok || rec.obj.typ != kern.SmallPageObject {
		return kern.Fail(kern.CallPageMap, kern.CodeInvalidCapability)
	}
	if rec.mapped != nil {
		return kern.Fail(kern.CallPageMap, kern.CodeInvalidCapability)
	}
	if vaddr&(1<<pageSpan-1) != 0 {
		return kern.Fail(kern.CallPageMap, kern.CodeAlignmentError)
	}
	if !rights.Subset(rec.rights) {
		return kern.Fail(kern.CallPageMap, kern.CodeInvalidArgument)
	}
	vrec, ok := k.lookup(vroot)
	if !ok || !isPagingRoot(vrec.obj) {
		return kern.Fail(kern.CallPageMap, kern.CodeInvalidCapability)
	}
	root := vrec.obj
	parentType, parentSpan, rootIsParent, legal := parentLevel(root, kern.SmallPageObject)
	if !legal {
		return kern.Fail(kern.CallPageMap, kern.CodeIllegalOperation)
	}
	if !rootIsParent {
		if _, present := root.tables[parentType][vaddr>>parentSpan]; !present {
			return kern.Fail(kern.CallPageMap, kern.CodeFailedLookup)
		}
	}
	if _, present := root.frames[vaddr>>pageSpan]; present {
		return kern.Fail(kern.CallPageMap, kern.CodeDeleteFirst)
	}
	root.frames[vaddr>>pageSpan] = &frameMapping{rec: rec, obj: rec.obj, rights: rights}
	rec.mapped = &mapping{root: root, vaddr: vaddr}
	return nil
}

func (k *Kernel) PageUnmap(page kern.Cptr) error {
	k.count(kern.CallPageUnmap)
	rec, ok := k.lookup(page)
	if !ok || rec.obj.typ != kern.SmallPageObject {
		return kern.Fail(kern.CallPageUnmap, kern.CodeInvalidCapability)
	}
	if rec.mapped != nil {
		delete(rec.mapped.root.frames, rec.mapped.vaddr>>pageSpan)
		rec.mapped = nil
	}
	return nil
}
