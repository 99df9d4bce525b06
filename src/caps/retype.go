package caps

import (
	"errors"

	"composure/src/kern"
)

// ErrRetypeFanOut is returned when a bulk retype asks for more objects
// than the kernel produces in one invocation.
var ErrRetypeFanOut = errors.New("bulk retype exceeds the kernel fan-out limit")

// ErrDeviceRetype is returned when device memory is retyped into
// anything but pages.
var ErrDeviceRetype = errors.New("device untyped may only be retyped into pages")

// retypable kinds have a statically known size and a meaningful zero
// state fresh out of retype.
type retypable interface {
	Kind
	retypeDefault()
}

// Retype turns one untyped of at least the required size into a single
// typed object, consuming the untyped and one slot from dest.
func Retype[K retypable, D Role](cs *CSpace, ut Cap[Untyped, Local], dest *Slots[D]) (Cap[K, D], error) {
	var none Cap[K, D]
	var zero K
	objType := zero.objectType()
	required, ok := objType.FixedSizeBits()
	if !ok {
		return none, errors.New("retype target has no fixed size")
	}
	if ut.Obj.SizeBits < required {
		return none, ErrInvalidUntypedSize
	}
	if ut.Obj.Kind.Device {
		return none, ErrDeviceRetype
	}
	slot, err := dest.alloc1()
	if err != nil {
		return none, err
	}
	if err := cs.K.UntypedRetype(ut.Cptr(), objType, 0, slot.destSlot(), 1); err != nil {
		return none, err
	}
	return capAt[K, D](slot.capCptr(), zero), nil
}

// RetypePage turns an untyped of at least page size into one page cap,
// unmapped, carrying the untyped's memory kind.
func RetypePage[D Role](cs *CSpace, ut Cap[Untyped, Local], dest *Slots[D]) (Cap[Page, D], error) {
	pages, err := RetypePages(cs, ut, 1, dest)
	if err != nil {
		return Cap[Page, D]{}, err
	}
	return pages[0], nil
}

// RetypePages carves count page caps out of one untyped.  The untyped
// must hold count pages and count must stay within the kernel's retype
// fan-out limit.
func RetypePages[D Role](cs *CSpace, ut Cap[Untyped, Local], count uint64, dest *Slots[D]) ([]Cap[Page, D], error) {
	if count == 0 || count > kern.KernelRetypeFanOutLimit {
		return nil, ErrRetypeFanOut
	}
	if uint64(1)<<ut.Obj.SizeBits < count<<kern.PageBits {
		return nil, ErrInvalidUntypedSize
	}
	first, rest, err := (*dest).Alloc(count)
	if err != nil {
		return nil, err
	}
	*dest = rest
	destSlot := kern.DestSlot{Root: first.cnode, Index: first.offset, Depth: kern.WordBits}
	if err := cs.K.UntypedRetype(ut.Cptr(), kern.SmallPageObject, 0, destSlot, count); err != nil {
		return nil, err
	}
	out := make([]Cap[Page, D], count)
	for i := uint64(0); i < count; i++ {
		kind := ut.Obj.Kind
		if kind.Device {
			kind = DeviceAt(ut.Obj.Kind.Paddr + i<<kern.PageBits)
		}
		out[i] = capAt[Page, D](kern.Cptr(first.offset+i), Page{Kind: kind})
	}
	return out, nil
}

// RetypeCNode builds a CNode of the given radix from an untyped of size
// radix+SlotBits or better, using two local slots: one for the raw
// retype, one to receive the CNode with its guard programmed.  The guard
// makes guard plus radix consume the whole cptr width, so cptrs into the
// new CNode are slot offsets.  Returns the CNode plus its free slots;
// slot zero is reserved, leaving 2^radix-1 of them.
func RetypeCNode(cs *CSpace, ut Cap[Untyped, Local], radix uint8, slots Slots[Local]) (Cap[CNode, Local], Slots[Child], error) {
	var none Cap[CNode, Local]
	if ut.Obj.Kind.Device {
		return none, Slots[Child]{}, ErrDeviceRetype
	}
	if ut.Obj.SizeBits < radix+kern.SlotBits {
		return none, Slots[Child]{}, ErrInvalidUntypedSize
	}
	pair, _, err := slots.Alloc(2)
	if err != nil {
		return none, Slots[Child]{}, err
	}
	raw := kern.DestSlot{Root: pair.cnode, Index: pair.offset, Depth: kern.WordBits}
	final := kern.DestSlot{Root: pair.cnode, Index: pair.offset + 1, Depth: kern.WordBits}
	if err := cs.K.UntypedRetype(ut.Cptr(), kern.CNodeObject, radix, raw, 1); err != nil {
		return none, Slots[Child]{}, err
	}
	if err := cs.K.CNodeMutate(final, raw, kern.GuardForRadix(radix)); err != nil {
		return none, Slots[Child]{}, err
	}
	cnode := capAt[CNode, Local](kern.Cptr(pair.offset+1), CNode{Radix: radix})
	free := SlotsIn[Child](cs, cnode, 1, (uint64(1)<<radix)-1)
	return cnode, free, nil
}
