package caps

import (
	"errors"
	"fmt"

	"composure/src/kern"
	"composure/src/lib/trust"
)

// ErrNotEnoughSlots is returned when a slot range cannot satisfy a
// request for capability slots.
var ErrNotEnoughSlots = errors.New("not enough CNode slots")

// Slots is a contiguous range of free capability slots in one CNode,
// exclusively owned by the holder.  Splitting transfers ownership of the
// sub-ranges and consumes the original.  Dropping a range does not free
// its slots; only the caps inside slots are ever deleted.
type Slots[R Role] struct {
	cs     *CSpace
	cnode  kern.Cptr
	offset uint64
	count  uint64
}

// LocalSlots wraps a range of free slots in the caller's own CSpace root.
// This is how the bootstrap hands the core its initial slot capital.
func (cs *CSpace) LocalSlots(offset uint64, count uint64) Slots[Local] {
	return Slots[Local]{cs: cs, cnode: cs.Root, offset: offset, count: count}
}

// SlotsIn wraps a range of free slots inside a CNode the caller created;
// the range's role says whose CSpace the CNode will serve.
func SlotsIn[R Role](cs *CSpace, cnode Cap[CNode, Local], offset uint64, count uint64) Slots[R] {
	return Slots[R]{cs: cs, cnode: cnode.Cptr(), offset: offset, count: count}
}

func (s Slots[R]) String() string {
	var r R
	return fmt.Sprintf("slots[%s cnode=%#x offset=%d count=%d]", r.crole(), uint64(s.cnode), s.offset, s.count)
}

// Count returns how many slots remain in the range.
func (s Slots[R]) Count() uint64 {
	return s.count
}

// Alloc splits off the first k slots, consuming the receiver and
// returning the carved range plus the remainder.
func (s Slots[R]) Alloc(k uint64) (Slots[R], Slots[R], error) {
	if k > s.count {
		return Slots[R]{}, Slots[R]{}, ErrNotEnoughSlots
	}
	first := Slots[R]{cs: s.cs, cnode: s.cnode, offset: s.offset, count: k}
	rest := Slots[R]{cs: s.cs, cnode: s.cnode, offset: s.offset + k, count: s.count - k}
	return first, rest, nil
}

// Iter breaks the range into single-slot ranges, consuming the
// receiver; afterward the singles are the only live handles on those
// slots.
func (s *Slots[R]) Iter() []Slots[R] {
	out := make([]Slots[R], 0, s.count)
	for i := uint64(0); i < s.count; i++ {
		out = append(out, Slots[R]{cs: s.cs, cnode: s.cnode, offset: s.offset + i, count: 1})
	}
	*s = Slots[R]{}
	return out
}

// Weaken erases the compile-time flavor of the range into the runtime
// checked form.  Lossless.
func (s Slots[R]) Weaken() WeakSlots[R] {
	return WeakSlots[R]{cs: s.cs, cnode: s.cnode, offset: s.offset, count: s.count}
}

// slotRef names one slot for a kernel call.
type slotRef struct {
	cnode  kern.Cptr
	offset uint64
}

func (sr slotRef) destSlot() kern.DestSlot {
	return kern.DestSlot{Root: sr.cnode, Index: sr.offset, Depth: kern.WordBits}
}

// capCptr is the cptr a cap in this slot answers to, valid because every
// CNode in this discipline has its guard programmed so cptrs are slot
// offsets.
func (sr slotRef) capCptr() kern.Cptr {
	return kern.Cptr(sr.offset)
}

// alloc1 takes the first slot out of the range, advancing it.
func (s *Slots[R]) alloc1() (slotRef, error) {
	if s.count == 0 {
		return slotRef{}, ErrNotEnoughSlots
	}
	sr := slotRef{cnode: s.cnode, offset: s.offset}
	s.offset++
	s.count--
	return sr, nil
}

// WithTemporary lends the whole range to f for scratch use.  Whatever f
// put in the slots is revoked and deleted in reverse offset order when f
// returns, error or not, and the range is whole again afterward.  Reverse
// order matches the LIFO allocation discipline, so revoking a cap cleans
// up its dependents before the loop reaches them.
func WithTemporary(s *Slots[Local], f func(*Slots[Local]) error) error {
	scratch := *s
	ferr := f(&scratch)
	used := s.count - scratch.count
	for i := used; i > 0; i-- {
		slot := kern.DestSlot{Root: s.cnode, Index: s.offset + i - 1, Depth: kern.WordBits}
		if err := s.cs.K.CNodeRevoke(slot); err != nil {
			trust.Errorf("revoke during temporary-scope teardown failed: %v", err)
			panic("temporary slot scope could not be torn down")
		}
		if err := s.cs.K.CNodeDelete(slot); err != nil {
			trust.Errorf("delete during temporary-scope teardown failed: %v", err)
			panic("temporary slot scope could not be torn down")
		}
	}
	return ferr
}

// WeakSlots is the runtime-counted form of a slot range.
type WeakSlots[R Role] struct {
	cs     *CSpace
	cnode  kern.Cptr
	offset uint64
	count  uint64
}

func (w WeakSlots[R]) String() string {
	var r R
	return fmt.Sprintf("weakslots[%s cnode=%#x offset=%d count=%d]", r.crole(), uint64(w.cnode), w.offset, w.count)
}

// Count returns how many slots remain.
func (w WeakSlots[R]) Count() uint64 {
	return w.count
}

// Alloc carves count slots off the front, leaving the receiver with the
// remainder.
func (w *WeakSlots[R]) Alloc(count uint64) (WeakSlots[R], error) {
	if count > w.count {
		return WeakSlots[R]{}, ErrNotEnoughSlots
	}
	carved := WeakSlots[R]{cs: w.cs, cnode: w.cnode, offset: w.offset, count: count}
	w.offset += count
	w.count -= count
	return carved, nil
}

// AllocStrong recovers a strongly counted range of k slots from the
// front.
func (w *WeakSlots[R]) AllocStrong(k uint64) (Slots[R], error) {
	if k > w.count {
		return Slots[R]{}, ErrNotEnoughSlots
	}
	carved := Slots[R]{cs: w.cs, cnode: w.cnode, offset: w.offset, count: k}
	w.offset += k
	w.count -= k
	return carved, nil
}

// TakeSlot consumes exactly one slot from the front; routines that need a
// slot per produced item call this as they go, and the remaining range
// stays accurate between calls.
func (w *WeakSlots[R]) TakeSlot() (Slots[R], error) {
	return w.AllocStrong(1)
}

func (w *WeakSlots[R]) alloc1() (slotRef, error) {
	if w.count == 0 {
		return slotRef{}, ErrNotEnoughSlots
	}
	sr := slotRef{cnode: w.cnode, offset: w.offset}
	w.offset++
	w.count--
	return sr, nil
}
