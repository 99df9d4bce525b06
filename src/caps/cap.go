package caps

import (
	"fmt"

	"composure/src/kern"
)

// Cap is a typed pointer into a CSpace.  K is the object kind (and its
// state), R is the role.  A Cap exclusively owns its slot and the object
// inside it unless the kind is explicitly shareable through Copy.
type Cap[K Kind, R Role] struct {
	cptr kern.Cptr
	Obj  K
}

// Cptr returns the raw capability pointer.  For Child-role caps the value
// only means something inside the child's CSpace.
func (c Cap[K, R]) Cptr() kern.Cptr {
	return c.cptr
}

func (c Cap[K, R]) String() string {
	var r R
	return fmt.Sprintf("cap[%v %s @%#x %+v]", c.Obj.objectType(), r.crole(), uint64(c.cptr), c.Obj)
}

// capAt builds a handle; internal, the kernel object must really be
// there.
func capAt[K Kind, R Role](cptr kern.Cptr, obj K) Cap[K, R] {
	return Cap[K, R]{cptr: cptr, Obj: obj}
}

// copyAliasable kinds may be duplicated; the copy's state is whatever
// afterCopy leaves of the original's (mapped state is lost).
type copyAliasable[K any] interface {
	Kind
	afterCopy() K
}

// mintable kinds can carry a badge; the kernel only permits this for
// endpoints and notifications.
type mintable[K any] interface {
	copyAliasable[K]
	mintableCap()
}

// deletableKind marks kinds whose caps may be deleted outright.
type deletableKind interface {
	Kind
	deletableCap()
}

// CSpace is the capability context of the calling thread: the kernel to
// trap into and the thread's CSpace root, whose guard is programmed so
// cptrs are slot offsets.
type CSpace struct {
	K    kern.Kernel
	Root kern.Cptr
	// RootRadix is the radix of the root CNode; offsets must stay
	// below 1<<RootRadix.
	RootRadix uint8
}

// NewCSpace wraps a kernel plus the caller's CSpace root capability.
func NewCSpace(k kern.Kernel, root kern.Cptr, radix uint8) *CSpace {
	return &CSpace{K: k, Root: root, RootRadix: radix}
}

// slotOf addresses a local cap's own slot for CNode operations.
func (cs *CSpace) slotOf(c kern.Cptr) kern.DestSlot {
	return kern.DestSlot{Root: cs.Root, Index: uint64(c), Depth: kern.WordBits}
}

// Copy duplicates a local cap into one slot taken from dest, restricted
// to the given rights.  The new handle adopts the destination's role; the
// original stays valid.
func Copy[K copyAliasable[K], D Role](cs *CSpace, c Cap[K, Local], dest *Slots[D], rights kern.CapRights) (Cap[K, D], error) {
	var none Cap[K, D]
	slot, err := dest.alloc1()
	if err != nil {
		return none, err
	}
	if err := cs.K.CNodeCopy(slot.destSlot(), cs.slotOf(c.cptr), rights); err != nil {
		return none, err
	}
	return capAt[K, D](slot.capCptr(), c.Obj.afterCopy()), nil
}

// Mint is copy plus badge, for the kinds the kernel lets carry one.
func Mint[K mintable[K], D Role](cs *CSpace, c Cap[K, Local], dest *Slots[D], rights kern.CapRights, badge kern.Badge) (Cap[K, D], error) {
	var none Cap[K, D]
	slot, err := dest.alloc1()
	if err != nil {
		return none, err
	}
	if err := cs.K.CNodeMint(slot.destSlot(), cs.slotOf(c.cptr), rights, badge); err != nil {
		return none, err
	}
	obj := c.Obj.afterCopy()
	obj = withBadge(obj, badge)
	return capAt[K, D](slot.capCptr(), obj), nil
}

// withBadge records a badge on the kinds that carry one.
func withBadge[K any](obj K, badge kern.Badge) K {
	switch o := any(&obj).(type) {
	case *Endpoint:
		o.Badge = badge
	case *Notification:
		o.Badge = badge
	}
	return obj
}

// MoveToSlot relocates a local cap into one slot taken from dest,
// consuming the original handle.
func MoveToSlot[K Kind, D Role](cs *CSpace, c Cap[K, Local], dest *Slots[D]) (Cap[K, D], error) {
	var none Cap[K, D]
	slot, err := dest.alloc1()
	if err != nil {
		return none, err
	}
	if err := cs.K.CNodeMove(slot.destSlot(), cs.slotOf(c.cptr)); err != nil {
		return none, err
	}
	return capAt[K, D](slot.capCptr(), c.Obj), nil
}

// Delete revokes and clears a local cap's slot, consuming the handle.
func Delete[K deletableKind](cs *CSpace, c Cap[K, Local]) error {
	if err := cs.K.CNodeRevoke(cs.slotOf(c.cptr)); err != nil {
		return err
	}
	return cs.K.CNodeDelete(cs.slotOf(c.cptr))
}

// MoveRawToSlot relocates a local cap known only by cptr into one slot
// taken from dest, returning the cptr it answers to afterward.  For the
// rare holder of a kind-erased cap, like an address space moving its
// root to a child; everything else moves typed handles with MoveToSlot.
func MoveRawToSlot[D Role](cs *CSpace, c kern.Cptr, dest *Slots[D]) (kern.Cptr, error) {
	slot, err := dest.alloc1()
	if err != nil {
		return 0, err
	}
	if err := cs.K.CNodeMove(slot.destSlot(), cs.slotOf(c)); err != nil {
		return 0, err
	}
	return slot.capCptr(), nil
}

// uncheckedCopy duplicates a local cap into an explicit destination slot,
// returning nothing but the error; bulk routines that manage their own
// offsets use it.
func uncheckedCopy[K Kind](cs *CSpace, c Cap[K, Local], dest kern.DestSlot, rights kern.CapRights) error {
	return cs.K.CNodeCopy(dest, cs.slotOf(c.cptr), rights)
}
