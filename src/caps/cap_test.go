package caps

import (
	"errors"
	"testing"

	"composure/src/kern"
	"composure/src/kern/pretend"
)

func makeEndpoint(t *testing.T, k *pretend.Kernel, cs *CSpace) Cap[Endpoint, Local] {
	t.Helper()
	ut, _ := placeUntyped(t, k, kern.EndpointBits, 8)
	dest := cs.LocalSlots(firstFreeSlot, 1)
	ep, err := Retype[Endpoint, Local](cs, ut, &dest)
	if err != nil {
		t.Fatalf("retype endpoint: %v", err)
	}
	return ep
}

func TestCopyRestrictsRights(t *testing.T) {
	k, cs := newTestSpace(t)
	ep := makeEndpoint(t, k, cs)
	dest := cs.LocalSlots(firstFreeSlot+1, 2)
	ro, err := Copy(cs, ep, &dest, kern.ReadOnly)
	if err != nil {
		t.Fatalf("copy read-only: %v", err)
	}
	if !k.SlotOccupied(ro.Cptr()) {
		t.Error("copy produced no kernel cap")
	}
	// widening a narrowed cap back out must be refused by the kernel
	roLocal := capAt[Endpoint, Local](ro.Cptr(), ro.Obj)
	if _, err := Copy(cs, roLocal, &dest, kern.AllRights); !kern.IsCode(err, kern.CodeInvalidArgument) {
		t.Errorf("rights widening: got %v, want InvalidArgument", err)
	}
}

func TestMintBadgesTheCopy(t *testing.T) {
	k, cs := newTestSpace(t)
	ep := makeEndpoint(t, k, cs)
	dest := cs.LocalSlots(firstFreeSlot+1, 1)
	badged, err := Mint(cs, ep, &dest, kern.AllRights, kern.Badge(0x2a))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if badged.Obj.Badge != 0x2a {
		t.Errorf("badge on handle: got %#x, want 0x2a", uint64(badged.Obj.Badge))
	}
	if !k.SlotOccupied(badged.Cptr()) {
		t.Error("mint produced no kernel cap")
	}
}

func TestMoveVacatesTheSource(t *testing.T) {
	k, cs := newTestSpace(t)
	ep := makeEndpoint(t, k, cs)
	from := ep.Cptr()
	dest := cs.LocalSlots(firstFreeSlot+1, 1)
	moved, err := MoveToSlot(cs, ep, &dest)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if k.SlotOccupied(from) {
		t.Error("source slot still occupied after move")
	}
	if !k.SlotOccupied(moved.Cptr()) {
		t.Error("destination slot empty after move")
	}
}

func TestDeleteTakesDerivedCapsDown(t *testing.T) {
	k, cs := newTestSpace(t)
	ep := makeEndpoint(t, k, cs)
	dest := cs.LocalSlots(firstFreeSlot+1, 1)
	cp, err := Copy(cs, ep, &dest, kern.AllRights)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if err := Delete(cs, ep); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if k.SlotOccupied(kern.Cptr(firstFreeSlot)) {
		t.Error("deleted slot still occupied")
	}
	if k.SlotOccupied(cp.Cptr()) {
		t.Error("derived copy survived revoke")
	}
}

func TestCopyWithoutSlots(t *testing.T) {
	k, cs := newTestSpace(t)
	ep := makeEndpoint(t, k, cs)
	empty := cs.LocalSlots(firstFreeSlot+1, 0)
	if _, err := Copy(cs, ep, &empty, kern.AllRights); !errors.Is(err, ErrNotEnoughSlots) {
		t.Errorf("copy into empty range: got %v, want ErrNotEnoughSlots", err)
	}
}
