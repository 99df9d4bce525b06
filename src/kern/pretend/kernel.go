// Package pretend is an in-memory model of the microkernel for host-side
// tests.  It implements kern.Kernel with real semantics for the memory
// and capability syscalls: CNode slots, untyped watermarks and physical
// address arithmetic, capability derivation trees for revoke, and
// per-root page-table chains where mapping a granule fails with
// FailedLookup when the level above it has not been installed.
//
// Thread and IPC calls are counted but only shallowly modeled; the core
// never issues them.
package pretend

import (
	"composure/src/kern"
)

// Well-known bootstrap cptrs, in the style of the init thread's CSpace.
const (
	InitCNode       kern.Cptr = 2
	InitASIDControl kern.Cptr = 3
)

// objectASIDControl is an object kind internal to the model; nothing
// retypes into it.
const objectASIDControl kern.ObjectType = -1

// Virtual address span (in bits) covered by one entry of each level, 4 KiB
// granule with 9 translation bits per level.
const (
	pageSpan = 12
	ptSpan   = 21
	pdSpan   = 30
	pudSpan  = 39
)

type mapping struct {
	root  *object
	vaddr uint64
}

type frameMapping struct {
	rec    *capRecord
	obj    *object
	rights kern.CapRights
}

type object struct {
	id       uint64
	typ      kern.ObjectType
	sizeBits uint8

	// untyped
	device    bool
	paddr     uint64
	watermark uint64

	// cnode
	radix uint8
	slots map[uint64]*capRecord

	// frame
	contents []byte

	// paging root
	asid   uint64
	tables map[kern.ObjectType]map[uint64]*object
	frames map[uint64]*frameMapping

	// asid pool / asid control
	remaining int

	// notification
	notifyWord uint64
}

// capRecord is one occupied CNode slot.  Copies and retype products hang
// off their source so revoke can find them.
type capRecord struct {
	obj      *object
	rights   kern.CapRights
	badge    kern.Badge
	guard    kern.CapData
	parent   *capRecord
	children []*capRecord

	cnode *object
	index uint64

	mapped *mapping
}

// Kernel is the model.  The zero value is not usable; call NewKernel.
type Kernel struct {
	root     *object
	nextID   uint64
	nextASID uint64
	// general untypeds get fake physical addresses carved from here so
	// retype paddr arithmetic is checkable for them too
	nextPaddr uint64
	calls     map[kern.APICall]int
}

var _ kern.Kernel = (*Kernel)(nil)

// NewKernel returns a model kernel whose root CNode has the given radix
// and holds only the ASID control capability.
func NewKernel(rootRadix uint8) *Kernel {
	k := &Kernel{
		nextID:    1,
		nextASID:  1,
		nextPaddr: 0x8000_0000,
		calls:     make(map[kern.APICall]int),
	}
	k.root = k.newObject(kern.CNodeObject, rootRadix+kern.SlotBits)
	k.root.radix = rootRadix
	k.root.slots = make(map[uint64]*capRecord)
	ctrl := k.newObject(objectASIDControl, 0)
	ctrl.remaining = kern.ASIDPoolCount
	k.install(k.root, uint64(InitASIDControl), &capRecord{obj: ctrl, rights: kern.AllRights})
	// the root CNode names itself
	k.install(k.root, uint64(InitCNode), &capRecord{obj: k.root, rights: kern.AllRights})
	return k
}

func (k *Kernel) newObject(typ kern.ObjectType, sizeBits uint8) *object {
	o := &object{id: k.nextID, typ: typ, sizeBits: sizeBits}
	k.nextID++
	return o
}

func (k *Kernel) install(cnode *object, index uint64, rec *capRecord) {
	rec.cnode = cnode
	rec.index = index
	cnode.slots[index] = rec
}

// AddUntyped places a general untyped of the given size at cptr in the
// root CNode and returns its model physical address.
func (k *Kernel) AddUntyped(sizeBits uint8, cptr kern.Cptr) uint64 {
	paddr := (k.nextPaddr + (1 << sizeBits) - 1) &^ ((1 << sizeBits) - 1)
	k.nextPaddr = paddr + 1<<sizeBits
	o := k.newObject(kern.UntypedObject, sizeBits)
	o.paddr = paddr
	k.install(k.root, uint64(cptr), &capRecord{obj: o, rights: kern.AllRights})
	return paddr
}

// AddDeviceUntyped places a device untyped with a fixed physical address
// at cptr in the root CNode.
func (k *Kernel) AddDeviceUntyped(sizeBits uint8, paddr uint64, cptr kern.Cptr) {
	o := k.newObject(kern.UntypedObject, sizeBits)
	o.paddr = paddr
	o.device = true
	k.install(k.root, uint64(cptr), &capRecord{obj: o, rights: kern.AllRights})
}

// CallCount returns how many times the named syscall has been issued,
// successes and failures both.
func (k *Kernel) CallCount(c kern.APICall) int {
	return k.calls[c]
}

// ResetCallCounts zeroes every syscall counter.
func (k *Kernel) ResetCallCounts() {
	k.calls = make(map[kern.APICall]int)
}

func (k *Kernel) count(c kern.APICall) {
	k.calls[c]++
}

// lookup resolves a cptr as an index into the root CNode.
func (k *Kernel) lookup(c kern.Cptr) (*capRecord, bool) {
	rec, ok := k.root.slots[uint64(c)]
	return rec, ok
}

// resolveCNode resolves the CNode named by a DestSlot's Root field.
func (k *Kernel) resolveCNode(root kern.Cptr) (*object, bool) {
	rec, ok := k.lookup(root)
	if !ok || rec.obj.typ != kern.CNodeObject {
		return nil, false
	}
	return rec.obj, true
}

func (k *Kernel) resolveSlot(d kern.DestSlot) (*object, uint64, bool) {
	cn, ok := k.resolveCNode(d.Root)
	if !ok {
		return nil, 0, false
	}
	if d.Index >= 1<<cn.radix {
		return nil, 0, false
	}
	return cn, d.Index, true
}
