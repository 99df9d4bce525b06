package caps

import (
	"errors"

	"composure/src/kern"
)

// MinUntypedSizeBits and MaxUntypedSizeBits bound the untyped sizes the
// architecture hands out.
const (
	MinUntypedSizeBits = 4
	MaxUntypedSizeBits = 47
)

// ErrInvalidUntypedSize is returned when a split or retype is asked of an
// untyped that is too small to supply it.
var ErrInvalidUntypedSize = errors.New("untyped too small for the requested operation")

// SplitUntyped turns one untyped of size 2^k into two of size 2^(k-1),
// consuming the original handle and a range of exactly two slots.  For
// device memory the first half keeps the base physical address and the
// second half starts at base plus half the size.
func SplitUntyped(cs *CSpace, ut Cap[Untyped, Local], slots Slots[Local]) (Cap[Untyped, Local], Cap[Untyped, Local], error) {
	var none Cap[Untyped, Local]
	if ut.Obj.SizeBits <= MinUntypedSizeBits {
		return none, none, ErrInvalidUntypedSize
	}
	if slots.count != 2 {
		return none, none, ErrNotEnoughSlots
	}
	childBits := ut.Obj.SizeBits - 1
	dest := kern.DestSlot{Root: slots.cnode, Index: slots.offset, Depth: kern.WordBits}
	if err := cs.K.UntypedRetype(ut.Cptr(), kern.UntypedObject, childBits, dest, 2); err != nil {
		return none, none, err
	}
	kindA, kindB := ut.Obj.Kind.half(ut.Obj.SizeBits)
	a := capAt[Untyped, Local](kern.Cptr(slots.offset), Untyped{SizeBits: childBits, Kind: kindA})
	b := capAt[Untyped, Local](kern.Cptr(slots.offset+1), Untyped{SizeBits: childBits, Kind: kindB})
	return a, b, nil
}

// QuarterUntyped turns one untyped of size 2^k into four of size
// 2^(k-2), consuming the original and a range of exactly four slots.
// Device physical addresses advance by a quarter of the size per child.
func QuarterUntyped(cs *CSpace, ut Cap[Untyped, Local], slots Slots[Local]) ([4]Cap[Untyped, Local], error) {
	var none [4]Cap[Untyped, Local]
	if ut.Obj.SizeBits < MinUntypedSizeBits+2 {
		return none, ErrInvalidUntypedSize
	}
	if slots.count != 4 {
		return none, ErrNotEnoughSlots
	}
	childBits := ut.Obj.SizeBits - 2
	dest := kern.DestSlot{Root: slots.cnode, Index: slots.offset, Depth: kern.WordBits}
	if err := cs.K.UntypedRetype(ut.Cptr(), kern.UntypedObject, childBits, dest, 4); err != nil {
		return none, err
	}
	var out [4]Cap[Untyped, Local]
	quarter := uint64(1) << childBits
	for i := 0; i < 4; i++ {
		kind := ut.Obj.Kind
		if kind.Device {
			kind = DeviceAt(ut.Obj.Kind.Paddr + uint64(i)*quarter)
		}
		out[i] = capAt[Untyped, Local](kern.Cptr(slots.offset+uint64(i)), Untyped{SizeBits: childBits, Kind: kind})
	}
	return out, nil
}
