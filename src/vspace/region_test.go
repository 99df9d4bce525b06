package vspace

import (
	"errors"
	"testing"

	"composure/src/caps"
	"composure/src/kern"
)

func TestNewRegionRetypesContiguousPages(t *testing.T) {
	f := newFixture(t)
	slots := f.slotRange(8)
	r, err := NewRegion(f.cs, f.untyped(t, 14), &slots)
	if err != nil {
		t.Fatalf("new region: %v", err)
	}
	if r.NumPages() != 4 || r.SizeBits() != 14 {
		t.Errorf("region shape: %d pages %d bits, want 4 and 14", r.NumPages(), r.SizeBits())
	}
	if r.Mapped() || r.Shared() {
		t.Error("fresh region is not exclusive-unmapped")
	}
	for i := uint64(0); i < 4; i++ {
		typ, _, ok := f.k.ObjectAt(r.Start() + kern.Cptr(i))
		if !ok || typ != kern.SmallPageObject {
			t.Errorf("page %d: got %v ok=%v", i, typ, ok)
		}
	}
}

func TestNewRegionBelowPageSize(t *testing.T) {
	f := newFixture(t)
	slots := f.slotRange(8)
	if _, err := NewRegion(f.cs, f.untyped(t, 10), &slots); !errors.Is(err, ErrInvalidRegionSize) {
		t.Errorf("sub-page region: got %v, want ErrInvalidRegionSize", err)
	}
}

func TestSplitCoversTheOriginal(t *testing.T) {
	f := newFixture(t)
	vs := f.vspace(t, nil)
	mapped, err := vs.MapRegion(f.region(t, 14), kern.ReadWrite, kern.DefaultVMAttributes)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	lo, hi, err := mapped.Split()
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if lo.SizeBits() != 13 || hi.SizeBits() != 13 {
		t.Errorf("half sizes: got %d and %d, want 13", lo.SizeBits(), hi.SizeBits())
	}
	if lo.Start() != mapped.Start() {
		t.Errorf("low half start: got %#x, want %#x", uint64(lo.Start()), uint64(mapped.Start()))
	}
	if want := mapped.Start() + kern.Cptr(mapped.NumPages()/2); hi.Start() != want {
		t.Errorf("high half start: got %#x, want %#x", uint64(hi.Start()), uint64(want))
	}
	if lo.Vaddr() != mapped.Vaddr() {
		t.Errorf("low half vaddr: got %#x, want %#x", lo.Vaddr(), mapped.Vaddr())
	}
	if want := mapped.Vaddr() + 1<<13; hi.Vaddr() != want {
		t.Errorf("high half vaddr: got %#x, want %#x", hi.Vaddr(), want)
	}
	// re-coalescing at the representation level recovers the original
	if lo.Start()+kern.Cptr(lo.NumPages()) != hi.Start() {
		t.Error("halves are not contiguous in cap space")
	}
	if lo.Vaddr()+1<<lo.SizeBits() != hi.Vaddr() {
		t.Error("halves are not contiguous in address space")
	}
}

func TestSplitSinglePageRefused(t *testing.T) {
	f := newFixture(t)
	r := f.region(t, kern.PageBits)
	if _, _, err := r.Split(); !errors.Is(err, ErrInvalidRegionSize) {
		t.Errorf("split of one page: got %v, want ErrInvalidRegionSize", err)
	}
}

func TestSplitDeviceRegionAdvancesPaddr(t *testing.T) {
	f := newFixture(t)
	const base = 0x3f20_0000
	f.k.AddDeviceUntyped(13, base, 60)
	ut := caps.WrapUntyped(60, 13, caps.DeviceAt(base))
	slots := f.slotRange(8)
	r, err := NewRegion(f.cs, ut, &slots)
	if err != nil {
		t.Fatalf("device region: %v", err)
	}
	lo, hi, err := r.Split()
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if lo.Kind().Paddr != base {
		t.Errorf("low half paddr: got %#x, want %#x", lo.Kind().Paddr, uint64(base))
	}
	if want := uint64(base) + 1<<12; hi.Kind().Paddr != want {
		t.Errorf("high half paddr: got %#x, want %#x", hi.Kind().Paddr, want)
	}
}

func TestWeakenStrengthenRoundTrip(t *testing.T) {
	f := newFixture(t)
	r := f.region(t, 14)
	w := r.Weaken()
	if w.NumPages() != 4 {
		t.Fatalf("weak page count: got %d, want 4", w.NumPages())
	}
	back, err := w.AsStrong(14)
	if err != nil {
		t.Fatalf("strengthen: %v", err)
	}
	if back != r {
		t.Errorf("round trip changed the region: got %+v, want %+v", back, r)
	}
	if _, err := w.AsStrong(13); !errors.Is(err, ErrInvalidRegionSize) {
		t.Errorf("strengthen to wrong size: got %v, want ErrInvalidRegionSize", err)
	}
}

func TestWrapWeakRegionStrengthens(t *testing.T) {
	// boot info describes three pages; three is not a power of two
	w := WrapWeakRegion(500, 3, caps.General)
	if _, err := w.AsStrong(14); !errors.Is(err, ErrInvalidRegionSize) {
		t.Errorf("strengthen of 3 pages: got %v, want ErrInvalidRegionSize", err)
	}
	w4 := WrapWeakRegion(500, 4, caps.General)
	r, err := w4.AsStrong(14)
	if err != nil {
		t.Fatalf("strengthen of 4 pages: %v", err)
	}
	if r.Start() != 500 || r.SizeBits() != 14 {
		t.Errorf("strengthened shape: start=%d bits=%d", uint64(r.Start()), r.SizeBits())
	}
}
