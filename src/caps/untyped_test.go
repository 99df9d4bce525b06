package caps

import (
	"errors"
	"testing"

	"composure/src/kern"
)

func TestSplitUntypedHalves(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, paddr := placeUntyped(t, k, 10, 8)
	a, b, err := SplitUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 2))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if a.Obj.SizeBits != 9 || b.Obj.SizeBits != 9 {
		t.Errorf("child sizes: got %d and %d, want 9", a.Obj.SizeBits, b.Obj.SizeBits)
	}
	pa, ok := k.PaddrAt(a.Cptr())
	if !ok {
		t.Fatal("first half has no kernel object")
	}
	pb, ok := k.PaddrAt(b.Cptr())
	if !ok {
		t.Fatal("second half has no kernel object")
	}
	if pa != paddr {
		t.Errorf("first half paddr: got %#x, want %#x", pa, paddr)
	}
	if pb != paddr+1<<9 {
		t.Errorf("second half paddr: got %#x, want %#x", pb, paddr+1<<9)
	}
}

func TestSplitDeviceUntypedKeepsPaddrs(t *testing.T) {
	k, cs := newTestSpace(t)
	const base = 0x3f00_0000
	ut := placeDeviceUntyped(t, k, 13, base, 8)
	a, b, err := SplitUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 2))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !a.Obj.Kind.Device || !b.Obj.Kind.Device {
		t.Fatal("device kind lost across split")
	}
	if a.Obj.Kind.Paddr != base {
		t.Errorf("first half kind paddr: got %#x, want %#x", a.Obj.Kind.Paddr, uint64(base))
	}
	if b.Obj.Kind.Paddr != base+1<<12 {
		t.Errorf("second half kind paddr: got %#x, want %#x", b.Obj.Kind.Paddr, uint64(base+1<<12))
	}
	// the handle's paddr arithmetic has to agree with the kernel's
	if pb, _ := k.PaddrAt(b.Cptr()); pb != b.Obj.Kind.Paddr {
		t.Errorf("kernel paddr %#x disagrees with handle %#x", pb, b.Obj.Kind.Paddr)
	}
}

func TestQuarterUntypedPaddrStride(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, paddr := placeUntyped(t, k, 12, 8)
	quads, err := QuarterUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 4))
	if err != nil {
		t.Fatalf("quarter: %v", err)
	}
	for i, q := range quads {
		if q.Obj.SizeBits != 10 {
			t.Errorf("quarter %d size: got %d, want 10", i, q.Obj.SizeBits)
		}
		want := paddr + uint64(i)<<10
		if got, _ := k.PaddrAt(q.Cptr()); got != want {
			t.Errorf("quarter %d paddr: got %#x, want %#x", i, got, want)
		}
	}
}

func TestSplitBelowMinimumRefused(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, MinUntypedSizeBits, 8)
	if _, _, err := SplitUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 2)); !errors.Is(err, ErrInvalidUntypedSize) {
		t.Errorf("split at minimum size: got %v, want ErrInvalidUntypedSize", err)
	}
	if k.SlotOccupied(firstFreeSlot) {
		t.Error("refused split still touched a slot")
	}
}

func TestSplitWithoutSlotsRefused(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 10, 8)
	if _, _, err := SplitUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 1)); !errors.Is(err, ErrNotEnoughSlots) {
		t.Errorf("split with one slot: got %v, want ErrNotEnoughSlots", err)
	}
}

func TestSplitWantsExactlyTwoSlots(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 10, 8)
	if _, _, err := SplitUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 3)); !errors.Is(err, ErrNotEnoughSlots) {
		t.Errorf("split with three slots: got %v, want ErrNotEnoughSlots", err)
	}
	for i := uint64(0); i < 3; i++ {
		if k.SlotOccupied(kern.Cptr(firstFreeSlot + i)) {
			t.Errorf("refused split touched slot %d", firstFreeSlot+i)
		}
	}
}

func TestQuarterWantsExactlyFourSlots(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 12, 8)
	if _, err := QuarterUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 3)); !errors.Is(err, ErrNotEnoughSlots) {
		t.Errorf("quarter with three slots: got %v, want ErrNotEnoughSlots", err)
	}
	if _, err := QuarterUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 5)); !errors.Is(err, ErrNotEnoughSlots) {
		t.Errorf("quarter with five slots: got %v, want ErrNotEnoughSlots", err)
	}
	quads, err := QuarterUntyped(cs, ut, cs.LocalSlots(firstFreeSlot, 4))
	if err != nil {
		t.Fatalf("quarter with four slots: %v", err)
	}
	if quads[0].Obj.SizeBits != 10 {
		t.Errorf("quarter size: got %d bits, want 10", quads[0].Obj.SizeBits)
	}
}
