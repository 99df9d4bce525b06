package upbeat

import "composure/src/lib/trust"

// BitSet is a fixed-size set of bits backed by uint64 words.  Sizes have
// to be multiples of 64 so the storage is always whole words.
type BitSet struct {
	size uint32
	data []uint64
}

type BitIndex uint32

// NewBitSet returns a bitset with all bits clear.  The size must be a
// multiple of 64 or you get a nil back.
func NewBitSet(size uint32) *BitSet {
	mask := ^(uint32(0x3f))
	if size&mask != size {
		trust.Errorf("your bitset size is not a multiple of 64: %d", size)
		return nil
	}
	result := &BitSet{
		size: size,
		data: make([]uint64, size>>6),
	}
	return result
}

func (b *BitSet) On(bit BitIndex) bool {
	boff := bit >> 6 //which uint64
	mask := uint64(1) << (bit % 64)
	return b.data[boff]&mask != 0
}

func (b *BitSet) Set(bit BitIndex) {
	boff := bit >> 6
	mask := uint64(1) << (bit % 64)
	b.data[boff] |= mask
}

func (b *BitSet) Clear(bit BitIndex) {
	boff := bit >> 6
	mask := uint64(1) << (bit % 64)
	b.data[boff] &= ^mask
}

func (b *BitSet) ClearAll() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// Size returns the number of bits this set holds.
func (b *BitSet) Size() uint32 {
	return b.size
}

// NextSet returns the index of the first set bit at or after from.  The
// second return value is false when no bit at or after from is set.
func (b *BitSet) NextSet(from BitIndex) (BitIndex, bool) {
	for i := from; uint32(i) < b.size; i++ {
		if b.On(i) {
			return i, true
		}
	}
	return 0, false
}
