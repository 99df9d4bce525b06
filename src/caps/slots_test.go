package caps

import (
	"errors"
	"testing"

	"composure/src/kern"
)

func TestSlotsAllocSplits(t *testing.T) {
	_, cs := newTestSpace(t)
	s := cs.LocalSlots(firstFreeSlot, 10)
	first, rest, err := s.Alloc(4)
	if err != nil {
		t.Fatalf("alloc 4 of 10: %v", err)
	}
	if got := first.Count(); got != 4 {
		t.Errorf("first count: got %d, want 4", got)
	}
	if got := rest.Count(); got != 6 {
		t.Errorf("rest count: got %d, want 6", got)
	}
	if rest.offset != firstFreeSlot+4 {
		t.Errorf("rest offset: got %d, want %d", rest.offset, firstFreeSlot+4)
	}
	if _, _, err := rest.Alloc(7); !errors.Is(err, ErrNotEnoughSlots) {
		t.Errorf("overdraw: got %v, want ErrNotEnoughSlots", err)
	}
}

func TestSlotsIterSinglets(t *testing.T) {
	_, cs := newTestSpace(t)
	s := cs.LocalSlots(firstFreeSlot, 3)
	singles := s.Iter()
	if len(singles) != 3 {
		t.Fatalf("iter length: got %d, want 3", len(singles))
	}
	if got := s.Count(); got != 0 {
		t.Errorf("iter left the range live with %d slots", got)
	}
	for i, one := range singles {
		if got := one.Count(); got != 1 {
			t.Errorf("single %d count: got %d, want 1", i, got)
		}
		if one.offset != firstFreeSlot+uint64(i) {
			t.Errorf("single %d offset: got %d, want %d", i, one.offset, firstFreeSlot+uint64(i))
		}
	}
}

func TestWeakSlotsBookkeeping(t *testing.T) {
	_, cs := newTestSpace(t)
	w := cs.LocalSlots(firstFreeSlot, 8).Weaken()
	carved, err := w.Alloc(3)
	if err != nil {
		t.Fatalf("weak alloc: %v", err)
	}
	if carved.Count() != 3 || w.Count() != 5 {
		t.Errorf("after alloc: carved %d remaining %d, want 3 and 5", carved.Count(), w.Count())
	}
	strong, err := w.AllocStrong(2)
	if err != nil {
		t.Fatalf("alloc strong: %v", err)
	}
	if strong.offset != firstFreeSlot+3 {
		t.Errorf("strong offset: got %d, want %d", strong.offset, firstFreeSlot+3)
	}
	one, err := w.TakeSlot()
	if err != nil {
		t.Fatalf("take slot: %v", err)
	}
	if one.Count() != 1 || w.Count() != 2 {
		t.Errorf("after take: one %d remaining %d, want 1 and 2", one.Count(), w.Count())
	}
	if _, err := w.Alloc(3); !errors.Is(err, ErrNotEnoughSlots) {
		t.Errorf("weak overdraw: got %v, want ErrNotEnoughSlots", err)
	}
}

// A temporary scope must leave every slot it lent out empty again, and it
// must tear down in reverse order so derived caps go before their
// sources.
func TestWithTemporaryCleansUp(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 8, 8)
	s := cs.LocalSlots(firstFreeSlot, 4)
	err := WithTemporary(&s, func(scratch *Slots[Local]) error {
		pair, rest, err := scratch.Alloc(2)
		if err != nil {
			return err
		}
		*scratch = rest
		a, b, err := SplitUntyped(cs, ut, pair)
		if err != nil {
			return err
		}
		if a.Obj.SizeBits != 7 || b.Obj.SizeBits != 7 {
			t.Errorf("split sizes inside scope: got %d and %d, want 7", a.Obj.SizeBits, b.Obj.SizeBits)
		}
		if !k.SlotOccupied(a.Cptr()) || !k.SlotOccupied(b.Cptr()) {
			t.Error("split products not present inside the scope")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("temporary scope: %v", err)
	}
	for i := uint64(0); i < 4; i++ {
		if k.SlotOccupied(kern.Cptr(firstFreeSlot + i)) {
			t.Errorf("slot %d still occupied after scope exit", firstFreeSlot+i)
		}
	}
	if s.Count() != 4 || s.offset != firstFreeSlot {
		t.Errorf("range not restored: offset %d count %d", s.offset, s.Count())
	}
}

func TestWithTemporaryPropagatesError(t *testing.T) {
	_, cs := newTestSpace(t)
	s := cs.LocalSlots(firstFreeSlot, 2)
	sentinel := errors.New("inner failure")
	if err := WithTemporary(&s, func(*Slots[Local]) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("scope error: got %v, want the inner failure", err)
	}
}
