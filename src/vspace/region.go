package vspace

import (
	"fmt"

	"composure/src/caps"
	"composure/src/kern"
)

// Region is a contiguous run of page caps treated as one logical block
// of memory.  Strong regions are power-of-two sized; SizeBits fixes the
// page count.  The zero value is no region.
//
// A region is exclusive until shared; the shared marker is sticky.  A
// shared region that was mapped without copying its caps first
// (MapSharedRegionAndConsume) returns to the unmapped-shared state on
// unmap, but those same caps cannot be mapped a second time elsewhere
// without a fresh copy.
type Region[R caps.Role] struct {
	start    kern.Cptr
	sizeBits uint8
	kind     caps.MemoryKind
	shared   bool
	mapped   bool
	vaddr    uint64
	asid     uint64
}

func (r Region[R]) String() string {
	state := "unmapped"
	if r.mapped {
		state = fmt.Sprintf("mapped@%#x asid=%d", r.vaddr, r.asid)
	}
	sharing := "exclusive"
	if r.shared {
		sharing = "shared"
	}
	return fmt.Sprintf("region[%d bits %s %s %s start=%#x]", r.sizeBits, r.kind, sharing, state, uint64(r.start))
}

// SizeBits is the log2 of the region's byte size.
func (r Region[R]) SizeBits() uint8 { return r.sizeBits }

// NumPages is derived from the size; strong regions never store it.
func (r Region[R]) NumPages() uint64 { return 1 << (r.sizeBits - kern.PageBits) }

// Start is the cptr of the region's first page cap; the rest follow
// contiguously.
func (r Region[R]) Start() kern.Cptr { return r.start }

func (r Region[R]) Kind() caps.MemoryKind { return r.kind }
func (r Region[R]) Mapped() bool          { return r.mapped }
func (r Region[R]) Shared() bool          { return r.shared }

// Vaddr is where the region is mapped; meaningless unless Mapped.
func (r Region[R]) Vaddr() uint64 { return r.vaddr }

// pageKind is the memory kind of the i-th page, advancing the physical
// address for device regions.
func (r Region[R]) pageKind(i uint64) caps.MemoryKind {
	if !r.kind.Device {
		return caps.General
	}
	return caps.DeviceAt(r.kind.Paddr + i<<kern.PageBits)
}

// NewRegion carves an unmapped exclusive region out of an untyped of
// exactly the region's size, consuming the untyped and one contiguous
// slot per page.
func NewRegion(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], slots *caps.WeakSlots[caps.Local]) (Region[caps.Local], error) {
	var none Region[caps.Local]
	sizeBits := ut.Obj.SizeBits
	if sizeBits < kern.PageBits {
		return none, ErrInvalidRegionSize
	}
	count := uint64(1) << (sizeBits - kern.PageBits)
	dest, err := slots.AllocStrong(count)
	if err != nil {
		return none, err
	}
	pages, err := caps.RetypePages(cs, ut, count, &dest)
	if err != nil {
		return none, err
	}
	return Region[caps.Local]{
		start:    pages[0].Cptr(),
		sizeBits: sizeBits,
		kind:     ut.Obj.Kind,
	}, nil
}

// Split halves the region: same caps, two handles.  The halves' cap
// ranges are the front and back of the original's, and a mapped region's
// halves stay mapped at vaddr and vaddr plus half the size.
func (r Region[R]) Split() (Region[R], Region[R], error) {
	var none Region[R]
	if r.sizeBits <= kern.PageBits {
		return none, none, ErrInvalidRegionSize
	}
	halfBits := r.sizeBits - 1
	halfPages := uint64(1) << (halfBits - kern.PageBits)
	first := r
	first.sizeBits = halfBits
	second := r
	second.sizeBits = halfBits
	second.start = r.start + kern.Cptr(halfPages)
	if r.kind.Device {
		second.kind = caps.DeviceAt(r.kind.Paddr + 1<<halfBits)
	}
	if r.mapped {
		second.vaddr = r.vaddr + 1<<halfBits
	}
	return first, second, nil
}

// Weaken erases the power-of-two guarantee into the runtime-counted
// form.  Lossless.
func (r Region[R]) Weaken() WeakRegion[R] {
	return WeakRegion[R]{
		start:    r.start,
		count:    r.NumPages(),
		sizeBits: r.sizeBits,
		kind:     r.kind,
		shared:   r.shared,
		mapped:   r.mapped,
		vaddr:    r.vaddr,
		asid:     r.asid,
	}
}

// ShareRegion marks the region shared and copies its page caps into
// fresh slots with the given rights.  The copy comes back unmapped and
// can be mapped into another address space; the original keeps whatever
// mapped state it had, now marked shared.
func ShareRegion(cs *caps.CSpace, r Region[caps.Local], slots *caps.WeakSlots[caps.Local], rights kern.CapRights) (Region[caps.Local], Region[caps.Local], error) {
	var none Region[caps.Local]
	count := r.NumPages()
	dest, err := slots.AllocStrong(count)
	if err != nil {
		return none, none, err
	}
	copyStart, err := copyPageRange(cs, r.start, count, r.pageKind, &dest, rights)
	if err != nil {
		return none, none, err
	}
	cp := Region[caps.Local]{
		start:    copyStart,
		sizeBits: r.sizeBits,
		kind:     r.kind,
		shared:   true,
	}
	r.shared = true
	return cp, r, nil
}

// copyPageRange copies count contiguous page caps into dest, returning
// the cptr of the first copy.
func copyPageRange(cs *caps.CSpace, start kern.Cptr, count uint64, kindOf func(uint64) caps.MemoryKind, dest *caps.Slots[caps.Local], rights kern.CapRights) (kern.Cptr, error) {
	var first kern.Cptr
	for i := uint64(0); i < count; i++ {
		page := caps.WrapPage(start+kern.Cptr(i), kindOf(i))
		cp, err := caps.Copy(cs, page, dest, rights)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			first = cp.Cptr()
		}
	}
	return first, nil
}

// WeakRegion is a region whose page count is only known at runtime, the
// shape boot-info device memory arrives in.
type WeakRegion[R caps.Role] struct {
	start    kern.Cptr
	count    uint64
	sizeBits uint8
	kind     caps.MemoryKind
	shared   bool
	mapped   bool
	vaddr    uint64
	asid     uint64
}

// WrapWeakRegion lifts a raw contiguous run of page caps, as described
// by boot info, into a region handle.
func WrapWeakRegion(start kern.Cptr, count uint64, kind caps.MemoryKind) WeakRegion[caps.Local] {
	return WeakRegion[caps.Local]{start: start, count: count, kind: kind}
}

func (w WeakRegion[R]) NumPages() uint64        { return w.count }
func (w WeakRegion[R]) Start() kern.Cptr        { return w.start }
func (w WeakRegion[R]) Kind() caps.MemoryKind   { return w.kind }
func (w WeakRegion[R]) Mapped() bool            { return w.mapped }
func (w WeakRegion[R]) Shared() bool            { return w.shared }
func (w WeakRegion[R]) Vaddr() uint64           { return w.vaddr }

// AsStrong recovers the power-of-two form.  Fails unless the runtime
// count matches 2^(sizeBits-PageBits) exactly.
func (w WeakRegion[R]) AsStrong(sizeBits uint8) (Region[R], error) {
	if sizeBits < kern.PageBits || w.count != 1<<(sizeBits-kern.PageBits) {
		return Region[R]{}, ErrInvalidRegionSize
	}
	if w.sizeBits != 0 && w.sizeBits != sizeBits {
		return Region[R]{}, ErrInvalidRegionSize
	}
	return Region[R]{
		start:    w.start,
		sizeBits: sizeBits,
		kind:     w.kind,
		shared:   w.shared,
		mapped:   w.mapped,
		vaddr:    w.vaddr,
		asid:     w.asid,
	}, nil
}
