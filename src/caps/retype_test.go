package caps

import (
	"errors"
	"testing"

	"composure/src/kern"
)

func TestRetypeFixedSizeObject(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, kern.TCBBits, 8)
	dest := cs.LocalSlots(firstFreeSlot, 1)
	tcb, err := Retype[TCB, Local](cs, ut, &dest)
	if err != nil {
		t.Fatalf("retype tcb: %v", err)
	}
	typ, _, ok := k.ObjectAt(tcb.Cptr())
	if !ok || typ != kern.TCBObject {
		t.Errorf("object at %v: got %v ok=%v, want TCB", tcb.Cptr(), typ, ok)
	}
	if dest.Count() != 0 {
		t.Errorf("slots left: got %d, want 0", dest.Count())
	}
}

func TestRetypeTooSmallUntyped(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, kern.EndpointBits, 8)
	dest := cs.LocalSlots(firstFreeSlot, 1)
	if _, err := Retype[TCB, Local](cs, ut, &dest); !errors.Is(err, ErrInvalidUntypedSize) {
		t.Errorf("undersized retype: got %v, want ErrInvalidUntypedSize", err)
	}
	if dest.Count() != 1 {
		t.Errorf("refused retype consumed a slot: %d left", dest.Count())
	}
}

func TestRetypePagesBulk(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 14, 8)
	dest := cs.LocalSlots(firstFreeSlot, 4)
	pages, err := RetypePages(cs, ut, 4, &dest)
	if err != nil {
		t.Fatalf("retype pages: %v", err)
	}
	if len(pages) != 4 {
		t.Fatalf("page count: got %d, want 4", len(pages))
	}
	for i, p := range pages {
		if p.Obj.Mapped {
			t.Errorf("page %d born mapped", i)
		}
		typ, _, ok := k.ObjectAt(p.Cptr())
		if !ok || typ != kern.SmallPageObject {
			t.Errorf("page %d object: got %v ok=%v", i, typ, ok)
		}
	}
}

func TestRetypePagesOverdrawsUntyped(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 13, 8)
	dest := cs.LocalSlots(firstFreeSlot, 4)
	if _, err := RetypePages(cs, ut, 4, &dest); !errors.Is(err, ErrInvalidUntypedSize) {
		t.Errorf("four pages from two pages of memory: got %v, want ErrInvalidUntypedSize", err)
	}
}

func TestRetypePagesFanOutLimit(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 24, 8)
	dest := cs.LocalSlots(firstFreeSlot, kern.KernelRetypeFanOutLimit+1)
	if _, err := RetypePages(cs, ut, kern.KernelRetypeFanOutLimit+1, &dest); !errors.Is(err, ErrRetypeFanOut) {
		t.Errorf("over fan-out: got %v, want ErrRetypeFanOut", err)
	}
}

func TestRetypeDevicePagesCarryPaddrs(t *testing.T) {
	k, cs := newTestSpace(t)
	const base = 0x3f20_0000
	ut := placeDeviceUntyped(t, k, 14, base, 8)
	dest := cs.LocalSlots(firstFreeSlot, 2)
	pages, err := RetypePages(cs, ut, 2, &dest)
	if err != nil {
		t.Fatalf("retype device pages: %v", err)
	}
	for i, p := range pages {
		want := uint64(base) + uint64(i)<<kern.PageBits
		if !p.Obj.Kind.Device || p.Obj.Kind.Paddr != want {
			t.Errorf("page %d kind: got %v, want device@%#x", i, p.Obj.Kind, want)
		}
		if got, _ := k.PaddrAt(p.Cptr()); got != want {
			t.Errorf("page %d kernel paddr: got %#x, want %#x", i, got, want)
		}
	}
}

func TestRetypeDeviceToNonPageRefused(t *testing.T) {
	k, cs := newTestSpace(t)
	ut := placeDeviceUntyped(t, k, kern.TCBBits, 0x3f00_0000, 8)
	dest := cs.LocalSlots(firstFreeSlot, 1)
	if _, err := Retype[TCB, Local](cs, ut, &dest); !errors.Is(err, ErrDeviceRetype) {
		t.Errorf("tcb from device memory: got %v, want ErrDeviceRetype", err)
	}
}

func TestRetypeCNodeGetsGuard(t *testing.T) {
	k, cs := newTestSpace(t)
	const radix = 12
	ut, _ := placeUntyped(t, k, radix+kern.SlotBits, 8)
	cnode, free, err := RetypeCNode(cs, ut, radix, cs.LocalSlots(firstFreeSlot, 2))
	if err != nil {
		t.Fatalf("retype cnode: %v", err)
	}
	if cnode.Obj.Radix != radix {
		t.Errorf("cnode radix in handle: got %d, want %d", cnode.Obj.Radix, radix)
	}
	if got, ok := k.RadixAt(cnode.Cptr()); !ok || got != radix {
		t.Errorf("cnode radix in kernel: got %d ok=%v, want %d", got, ok, radix)
	}
	guard, ok := k.GuardAt(cnode.Cptr())
	if !ok {
		t.Fatal("cnode has no guard")
	}
	if want := kern.GuardForRadix(radix); guard != want {
		t.Errorf("guard: got %+v, want %+v", guard, want)
	}
	// slot zero stays reserved
	if got := free.Count(); got != (1<<radix)-1 {
		t.Errorf("free child slots: got %d, want %d", got, (1<<radix)-1)
	}
	if free.offset != 1 {
		t.Errorf("free child slots start: got %d, want 1", free.offset)
	}
}

func TestRetypeCNodeUndersized(t *testing.T) {
	k, cs := newTestSpace(t)
	ut, _ := placeUntyped(t, k, 12, 8)
	if _, _, err := RetypeCNode(cs, ut, 12, cs.LocalSlots(firstFreeSlot, 2)); !errors.Is(err, ErrInvalidUntypedSize) {
		t.Errorf("undersized cnode retype: got %v, want ErrInvalidUntypedSize", err)
	}
}
