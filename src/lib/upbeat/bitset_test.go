package upbeat

import "testing"

func TestBitSetBasics(t *testing.T) {
	b := NewBitSet(128)
	if b == nil {
		t.Fatalf("128 is a multiple of 64, bitset creation should work")
	}
	if NewBitSet(100) != nil {
		t.Errorf("100 is not a multiple of 64, bitset creation should fail")
	}
	for i := BitIndex(0); i < 128; i++ {
		if b.On(i) {
			t.Errorf("bit %d should start clear", i)
		}
	}
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(127)
	for _, i := range []BitIndex{0, 63, 64, 127} {
		if !b.On(i) {
			t.Errorf("bit %d should be set", i)
		}
	}
	if b.On(1) || b.On(62) || b.On(65) {
		t.Errorf("neighboring bits should remain clear")
	}
	b.Clear(63)
	if b.On(63) {
		t.Errorf("bit 63 should be clear after Clear")
	}
	b.ClearAll()
	if b.On(0) || b.On(64) || b.On(127) {
		t.Errorf("all bits should be clear after ClearAll")
	}
}

func TestBitSetNextSet(t *testing.T) {
	b := NewBitSet(64)
	if _, ok := b.NextSet(0); ok {
		t.Errorf("empty bitset has no set bit")
	}
	b.Set(5)
	b.Set(40)
	if got, ok := b.NextSet(0); !ok || got != 5 {
		t.Errorf("expected first set bit 5 but got %d (ok=%v)", got, ok)
	}
	if got, ok := b.NextSet(6); !ok || got != 40 {
		t.Errorf("expected next set bit 40 but got %d (ok=%v)", got, ok)
	}
	if _, ok := b.NextSet(41); ok {
		t.Errorf("no set bit at or after 41")
	}
}
