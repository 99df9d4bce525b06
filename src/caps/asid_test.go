package caps

import (
	"errors"
	"testing"

	"composure/src/kern"
	"composure/src/kern/pretend"
)

func makePool(t *testing.T, k *pretend.Kernel, cs *CSpace, ac *ASIDControl, utCptr kern.Cptr, slot uint64) Cap[ASIDPool, Local] {
	t.Helper()
	ut, _ := placeUntyped(t, k, kern.ASIDPoolBits, utCptr)
	dest := cs.LocalSlots(slot, 1)
	pool, err := ac.MakePool(ut, &dest)
	if err != nil {
		t.Fatalf("make pool: %v", err)
	}
	return pool
}

func TestMakePoolConsumesControlBudget(t *testing.T) {
	k, cs := newTestSpace(t)
	ac := NewASIDControl(cs, pretend.InitASIDControl)
	if got := ac.PoolsRemaining(); got != kern.ASIDPoolCount {
		t.Fatalf("fresh control remaining: got %d, want %d", got, kern.ASIDPoolCount)
	}
	pool := makePool(t, k, cs, ac, 8, firstFreeSlot)
	if got := ac.PoolsRemaining(); got != kern.ASIDPoolCount-1 {
		t.Errorf("remaining after one pool: got %d, want %d", got, kern.ASIDPoolCount-1)
	}
	if typ, _, ok := k.ObjectAt(pool.Cptr()); !ok || typ != kern.ASIDPoolObject {
		t.Errorf("pool object: got %v ok=%v", typ, ok)
	}
	if pool.Obj.Remaining != kern.ASIDPoolSize {
		t.Errorf("fresh pool capacity: got %d, want %d", pool.Obj.Remaining, kern.ASIDPoolSize)
	}
}

func TestMakePoolExhaustsControl(t *testing.T) {
	k, cs := newTestSpace(t)
	ac := NewASIDControl(cs, pretend.InitASIDControl)
	for i := 0; i < kern.ASIDPoolCount; i++ {
		makePool(t, k, cs, ac, kern.Cptr(8+i), firstFreeSlot+uint64(i))
	}
	ut, _ := placeUntyped(t, k, kern.ASIDPoolBits, 30)
	dest := cs.LocalSlots(firstFreeSlot+kern.ASIDPoolCount, 1)
	if _, err := ac.MakePool(ut, &dest); !errors.Is(err, ErrASIDControlExhausted) {
		t.Errorf("pool past the budget: got %v, want ErrASIDControlExhausted", err)
	}
}

func TestAllocASIDUniqueAcrossPools(t *testing.T) {
	k, cs := newTestSpace(t)
	ac := NewASIDControl(cs, pretend.InitASIDControl)
	poolA := makePool(t, k, cs, ac, 8, firstFreeSlot)
	poolB := makePool(t, k, cs, ac, 9, firstFreeSlot+1)
	seen := make(map[uint64]bool)
	for i := 0; i < 5; i++ {
		a, err := AllocASID(&poolA)
		if err != nil {
			t.Fatalf("alloc from pool a: %v", err)
		}
		b, err := AllocASID(&poolB)
		if err != nil {
			t.Fatalf("alloc from pool b: %v", err)
		}
		for _, v := range []uint64{a.Value, b.Value} {
			if v == 0 {
				t.Error("asid value zero is reserved for unassigned")
			}
			if seen[v] {
				t.Errorf("asid %d handed out twice", v)
			}
			seen[v] = true
		}
	}
	if poolA.Obj.Remaining != kern.ASIDPoolSize-5 {
		t.Errorf("pool a remaining: got %d, want %d", poolA.Obj.Remaining, kern.ASIDPoolSize-5)
	}
}

func TestAssignASIDIsOneShot(t *testing.T) {
	k, cs := newTestSpace(t)
	ac := NewASIDControl(cs, pretend.InitASIDControl)
	pool := makePool(t, k, cs, ac, 8, firstFreeSlot)

	ut, _ := placeUntyped(t, k, kern.PageGlobalDirectoryBits, 9)
	dest := cs.LocalSlots(firstFreeSlot+1, 1)
	pgd, err := Retype[PageGlobalDir, Local](cs, ut, &dest)
	if err != nil {
		t.Fatalf("retype pgd: %v", err)
	}

	a, err := AllocASID(&pool)
	if err != nil {
		t.Fatalf("alloc asid: %v", err)
	}
	assigned, err := AssignASID(cs, a, pgd)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Obj.ASID != a.Value {
		t.Errorf("assigned handle asid: got %d, want %d", assigned.Obj.ASID, a.Value)
	}
	if got, ok := k.ASIDOf(assigned.Cptr()); !ok || got == 0 {
		t.Errorf("kernel sees asid %d ok=%v, want nonzero", got, ok)
	}

	second, err := AllocASID(&pool)
	if err != nil {
		t.Fatalf("alloc second asid: %v", err)
	}
	if _, err := AssignASID(cs, second, assigned); !errors.Is(err, ErrASIDAlreadyAssigned) {
		t.Errorf("second assignment: got %v, want ErrASIDAlreadyAssigned", err)
	}
}
