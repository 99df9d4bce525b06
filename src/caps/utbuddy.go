package caps

import (
	"errors"
	"fmt"

	"composure/src/gen"
	"composure/src/lib/trust"
	"composure/src/lib/upbeat"
)

// ErrUntypedExhaustion is returned when the buddy has nothing at or above
// the requested size.
var ErrUntypedExhaustion = errors.New("no untyped of sufficient size available")

// ErrDeviceInBuddy is returned when a device untyped is offered to the
// buddy; device memory is split directly so its physical addresses stay
// in the owner's hands.
var ErrDeviceInBuddy = errors.New("device untyped cannot enter the buddy pool")

const buddySizeClasses = MaxUntypedSizeBits - MinUntypedSizeBits + 1

// UTBuddy is a pool of free general untypeds, one LIFO list per size
// class from MinUntypedSizeBits to MaxUntypedSizeBits.  The populated
// bitmap has a bit per size class, so the number of splits an allocation
// will take is known before any kernel call is made.
//
// Invariant: a populated list at class k can always be refilled by
// splitting one entry from the nearest populated class above it, two
// slots per split.
type UTBuddy struct {
	cs        *CSpace
	populated *upbeat.BitSet
	lists     [buddySizeClasses]gen.DoublyLinkedList[Cap[Untyped, Local]]
}

// NewUTBuddy returns an empty pool bound to the caller's CSpace.
func NewUTBuddy(cs *CSpace) *UTBuddy {
	b := &UTBuddy{
		cs:        cs,
		populated: upbeat.NewBitSet(64),
	}
	for i := range b.lists {
		b.lists[i] = gen.NewDoublyLinkedList[Cap[Untyped, Local]]()
	}
	return b
}

func classOf(sizeBits uint8) (int, bool) {
	if sizeBits < MinUntypedSizeBits || sizeBits > MaxUntypedSizeBits {
		return 0, false
	}
	return int(sizeBits - MinUntypedSizeBits), true
}

// Insert donates a general untyped to the pool.
func (b *UTBuddy) Insert(ut Cap[Untyped, Local]) error {
	if ut.Obj.Kind.Device {
		return ErrDeviceInBuddy
	}
	class, ok := classOf(ut.Obj.SizeBits)
	if !ok {
		return ErrInvalidUntypedSize
	}
	b.push(class, ut)
	return nil
}

func (b *UTBuddy) push(class int, ut Cap[Untyped, Local]) {
	c := ut
	b.lists[class].Push(&c)
	b.populated.Set(upbeat.BitIndex(class))
}

func (b *UTBuddy) pop(class int) Cap[Untyped, Local] {
	node := b.lists[class].Pop()
	if b.lists[class].Empty() {
		b.populated.Clear(upbeat.BitIndex(class))
	}
	return *node.Value()
}

// sourceClass finds the class an allocation of the given target class
// would draw from: the target itself if populated, else the nearest
// populated class above it.
func (b *UTBuddy) sourceClass(target int) (int, bool) {
	idx, ok := b.populated.NextSet(upbeat.BitIndex(target))
	if !ok || int(idx) >= buddySizeClasses {
		return 0, false
	}
	return int(idx), true
}

// SlotsNeeded reports exactly how many CNode slots an Alloc of this size
// would consume right now: two per split, one split per class between
// the source and the target.
func (b *UTBuddy) SlotsNeeded(sizeBits uint8) (uint64, error) {
	target, ok := classOf(sizeBits)
	if !ok {
		return 0, ErrInvalidUntypedSize
	}
	src, ok := b.sourceClass(target)
	if !ok {
		return 0, ErrUntypedExhaustion
	}
	return 2 * uint64(src-target), nil
}

// Alloc produces one untyped of exactly the requested size, bubbling a
// larger untyped down through the size classes when the exact class is
// empty.  The supplied range must hold exactly SlotsNeeded(sizeBits)
// slots; the count being a function of pool state is what lets callers
// line up their slot budget before anything irreversible happens.
func (b *UTBuddy) Alloc(sizeBits uint8, slots Slots[Local]) (Cap[Untyped, Local], error) {
	var none Cap[Untyped, Local]
	needed, err := b.SlotsNeeded(sizeBits)
	if err != nil {
		return none, err
	}
	if slots.Count() != needed {
		return none, ErrNotEnoughSlots
	}
	weak := slots.Weaken()
	return b.alloc(sizeBits, &weak)
}

// AllocWeak is Alloc against a runtime-counted slot range; it consumes
// exactly the slots the bubble-down needs and leaves the rest.
func (b *UTBuddy) AllocWeak(sizeBits uint8, slots *WeakSlots[Local]) (Cap[Untyped, Local], error) {
	var none Cap[Untyped, Local]
	needed, err := b.SlotsNeeded(sizeBits)
	if err != nil {
		return none, err
	}
	if slots.Count() < needed {
		return none, ErrNotEnoughSlots
	}
	return b.alloc(sizeBits, slots)
}

func (b *UTBuddy) alloc(sizeBits uint8, slots *WeakSlots[Local]) (Cap[Untyped, Local], error) {
	var none Cap[Untyped, Local]
	target, _ := classOf(sizeBits)
	src, ok := b.sourceClass(target)
	if !ok {
		return none, ErrUntypedExhaustion
	}
	for i := src - 1; i >= target; i-- {
		splitSlots, err := slots.AllocStrong(2)
		if err != nil {
			return none, err
		}
		ut := b.pop(i + 1)
		first, second, err := SplitUntyped(b.cs, ut, splitSlots)
		if err != nil {
			// the popped untyped is still whole; put it back
			b.push(i+1, ut)
			return none, err
		}
		b.push(i, first)
		b.push(i, second)
	}
	out := b.pop(target)
	trust.Debugf("utbuddy: alloc %d bits used %d splits", sizeBits, src-target)
	return out, nil
}

// String reports, per size class, how many untypeds the pool holds;
// handy in logs when hunting an exhaustion.
func (b *UTBuddy) String() string {
	s := "utbuddy{"
	for i := 0; i < buddySizeClasses; i++ {
		n := b.lists[i].Length()
		if n > 0 {
			s += fmt.Sprintf(" %d:%d", i+MinUntypedSizeBits, n)
		}
	}
	return s + " }"
}

// ListCount reports how many untypeds sit in the size class for
// sizeBits.
func (b *UTBuddy) ListCount(sizeBits uint8) int {
	class, ok := classOf(sizeBits)
	if !ok {
		return 0
	}
	return b.lists[class].Length()
}

// Drain removes every untyped from the pool, largest classes last, and
// returns them; moving a buddy's holdings to a child consumes the pool.
func (b *UTBuddy) Drain() []Cap[Untyped, Local] {
	var out []Cap[Untyped, Local]
	for i := 0; i < buddySizeClasses; i++ {
		for !b.lists[i].Empty() {
			out = append(out, b.pop(i))
		}
	}
	return out
}
