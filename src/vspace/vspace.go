// Package vspace manages one virtual address space over the kernel's
// paging objects: choosing addresses, materializing intermediate page
// tables on demand, and moving regions of pages in and out of the
// space.  It owns an untyped pool and a slot range for the paging
// objects it creates; those are never freed while the space lives.
package vspace

import (
	"fmt"

	"composure/src/caps"
	"composure/src/kern"
	"composure/src/lib/trust"
)

// VSpace is one address space: a paging root with an ASID, the pipeline
// that fills in missing intermediate levels, and the watermarks that
// hand out addresses.  Owned by exactly one thread; nothing here locks.
type VSpace struct {
	cs    *caps.CSpace
	arch  *Arch
	root  kern.Cptr
	asid  uint64
	buddy *caps.UTBuddy
	slots caps.WeakSlots[caps.Local]
	rng   addressRange
}

// UserImage names the already-retyped pages of the code image and where
// they belong.  Writable asks for a private read-write mapping instead
// of the usual read-only aliasing of the parent's image.
type UserImage struct {
	StartVaddr uint64
	Pages      []caps.Cap[caps.Page, caps.Local]
	Writable   bool
}

// New builds a fresh address space: retypes a paging root out of
// rootUT, assigns it an ASID from pool, and maps the user image at its
// fixed addresses.  The buddy and slots become the space's property;
// every intermediate paging object ever needed comes out of them.
func New(cs *caps.CSpace, arch *Arch, rootUT caps.Cap[caps.Untyped, caps.Local], pool *caps.Cap[caps.ASIDPool, caps.Local], buddy *caps.UTBuddy, slots caps.WeakSlots[caps.Local], img *UserImage) (*VSpace, error) {
	rootSlot, err := slots.TakeSlot()
	if err != nil {
		return nil, err
	}
	root, asid, err := arch.newRoot(cs, rootUT, &rootSlot, pool)
	if err != nil {
		return nil, err
	}
	vs := &VSpace{
		cs:    cs,
		arch:  arch,
		root:  root,
		asid:  asid,
		buddy: buddy,
		slots: slots,
		rng:   addressRange{bottom: 1 << kern.PageBits, top: 1 << arch.VaddrBits},
	}
	if img != nil && len(img.Pages) > 0 {
		if err := vs.mapImage(img); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// mapImage aliases the image pages into this space.  The copies are
// what get mapped; the parent keeps its own caps.  The bottom watermark
// lands at twice the image size, leaving a dead zone that catches wild
// pointers off the image's end.
func (vs *VSpace) mapImage(img *UserImage) error {
	rights := kern.ReadOnly
	if img.Writable {
		rights = kern.ReadWrite
	}
	for i, p := range img.Pages {
		one, err := vs.slots.TakeSlot()
		if err != nil {
			return err
		}
		cp, err := caps.Copy(vs.cs, p, &one, rights)
		if err != nil {
			return err
		}
		vaddr := img.StartVaddr + uint64(i)<<kern.PageBits
		if err := vs.mapPage(cp.Cptr(), vaddr, rights, kern.DefaultVMAttributes); err != nil {
			return err
		}
	}
	imageBytes := uint64(len(img.Pages)) << kern.PageBits
	if bottom := 2 * imageBytes; bottom > vs.rng.bottom {
		vs.rng.bottom = bottom
	}
	return nil
}

// Bootstrap wraps the boot-info root address space instead of making
// one.  nextAddr seeds the bottom watermark past everything the boot
// protocol already mapped; the code image is assumed in place.
func Bootstrap(cs *caps.CSpace, arch *Arch, root kern.Cptr, nextAddr uint64, asid uint64, buddy *caps.UTBuddy, slots caps.WeakSlots[caps.Local]) *VSpace {
	return &VSpace{
		cs:    cs,
		arch:  arch,
		root:  root,
		asid:  asid,
		buddy: buddy,
		slots: slots,
		rng:   addressRange{bottom: nextAddr, top: 1 << arch.VaddrBits},
	}
}

// Root is the paging root's cptr, needed when configuring a TCB over
// this space.
func (vs *VSpace) Root() kern.Cptr { return vs.root }

// Identity is an opaque token collaborators compare to assert two
// handles talk about the same address space.
type Identity struct {
	asid uint64
}

func (vs *VSpace) Identity() Identity { return Identity{asid: vs.asid} }

func (a Identity) Equal(b Identity) bool { return a == b }

// SkipPages burns n page-sized slots of address space without mapping
// anything; guard pages around stacks come from here.
func (vs *VSpace) SkipPages(n uint64) error {
	end := vs.rng.bottom + n<<kern.PageBits
	if end < vs.rng.bottom || end > vs.rng.top {
		return ErrInsufficientAddressSpace
	}
	vs.rng.bottom = end
	return nil
}

// Reserve tells the watermark that [vaddr, vaddr+2^sizeBits) is already
// spoken for, typically a user image the bootstrap mapped before this
// space was constructed.  Page-aligned vaddrs only.
func (vs *VSpace) Reserve(vaddr uint64, sizeBits uint8) error {
	if vaddr&((1<<kern.PageBits)-1) != 0 {
		return ErrAddrNotPageAligned
	}
	if vaddr+1<<sizeBits > 1<<vs.arch.VaddrBits {
		return ErrExceededAddressableSpace
	}
	vs.rng.observeMapping(vaddr, sizeBits)
	return nil
}

// MapRegion maps an unmapped region at an automatically chosen address
// and advances the watermark past it.
func (vs *VSpace) MapRegion(r Region[caps.Local], rights kern.CapRights, attrs kern.VMAttributes) (Region[caps.Local], error) {
	vaddr, err := vs.rng.autoPropose(r.sizeBits)
	if err != nil {
		return r, err
	}
	return vs.MapRegionAt(r, vaddr, rights, attrs)
}

// MapRegionAt maps an unmapped region at the caller's address.  On any
// per-page failure every page this call already mapped is unmapped
// again, and the original region comes back beside the error so the
// caller can try elsewhere.  Rollback is best-effort: a syscall failure
// during it is logged, not surfaced over the original error.
func (vs *VSpace) MapRegionAt(r Region[caps.Local], vaddr uint64, rights kern.CapRights, attrs kern.VMAttributes) (Region[caps.Local], error) {
	if r.mapped {
		return r, ErrRegionMapped
	}
	if err := vs.checkPlacement(vaddr, r.NumPages()); err != nil {
		return r, err
	}
	if err := vs.mapPages(r.start, r.NumPages(), vaddr, rights, attrs); err != nil {
		return r, err
	}
	vs.rng.observeMapping(vaddr, r.sizeBits)
	r.mapped = true
	r.vaddr = vaddr
	r.asid = vs.asid
	return r, nil
}

func (vs *VSpace) checkPlacement(vaddr uint64, pages uint64) error {
	if vaddr&(1<<kern.PageBits-1) != 0 {
		return ErrAddrNotPageAligned
	}
	if pages > kern.KernelRetypeFanOutLimit {
		return ErrTooManyPagesAtOnce
	}
	end := vaddr + pages<<kern.PageBits
	if end < vaddr || end > 1<<vs.arch.VaddrBits {
		return ErrExceededAddressableSpace
	}
	return nil
}

// mapPages maps count contiguous page caps starting at start to
// contiguous vaddrs, rolling back on failure.
func (vs *VSpace) mapPages(start kern.Cptr, count uint64, vaddr uint64, rights kern.CapRights, attrs kern.VMAttributes) error {
	for i := uint64(0); i < count; i++ {
		err := vs.mapPage(start+kern.Cptr(i), vaddr+i<<kern.PageBits, rights, attrs)
		if err == nil {
			continue
		}
		for j := i; j > 0; j-- {
			if uerr := vs.cs.K.PageUnmap(start + kern.Cptr(j-1)); uerr != nil {
				trust.Errorf("vspace: rollback unmap of page %d failed: %v", j-1, uerr)
			}
		}
		return err
	}
	return nil
}

// UnmapRegion takes every page of a mapped region out of this space and
// returns the region in its unmapped state.  Regions mapped in some
// other space are refused.  The watermarks stay put; the space does not
// reuse addresses.
func (vs *VSpace) UnmapRegion(r Region[caps.Local]) (Region[caps.Local], error) {
	if !r.mapped {
		return r, ErrRegionNotMapped
	}
	if r.asid != vs.asid {
		return r, ErrASIDMismatch
	}
	count := r.NumPages()
	for i := uint64(0); i < count; i++ {
		if err := vs.cs.K.PageUnmap(r.start + kern.Cptr(i)); err != nil {
			return r, err
		}
	}
	r.mapped = false
	r.vaddr = 0
	r.asid = 0
	return r, nil
}

// MapSharedRegion copies the region's page caps into slots with the new
// rights, maps the copies at an automatic address, and marks the
// original shared.  The original's own mapping, if any, is untouched,
// and it can be shared into further spaces afterward.
func (vs *VSpace) MapSharedRegion(r *Region[caps.Local], rights kern.CapRights, attrs kern.VMAttributes, slots *caps.WeakSlots[caps.Local]) (Region[caps.Local], error) {
	cp, self, err := ShareRegion(vs.cs, *r, slots, rights)
	if err != nil {
		return Region[caps.Local]{}, err
	}
	*r = self
	mapped, err := vs.MapRegion(cp, rights, attrs)
	if err != nil {
		return Region[caps.Local]{}, err
	}
	return mapped, nil
}

// MapSharedRegionAndConsume maps a shared region's existing caps
// directly, with no copy.  Cheaper, but after an unmap these caps
// cannot be mapped anywhere else without a fresh copy, since mapping
// state lives on the caps themselves.
func (vs *VSpace) MapSharedRegionAndConsume(r Region[caps.Local], rights kern.CapRights, attrs kern.VMAttributes) (Region[caps.Local], error) {
	if !r.shared {
		return r, ErrRegionNotShared
	}
	return vs.MapRegion(r, rights, attrs)
}

// ChildVSpace is the parent's receipt for an address space handed to a
// child: every cptr in it names a slot in the child's CSpace and means
// nothing until the child runs.
type ChildVSpace struct {
	Root     kern.Cptr
	ASID     uint64
	Untypeds []caps.Cap[caps.Untyped, caps.Child]
}

// ForChild moves the paging root and the buddy's remaining untypeds
// into the child's slots, consuming the space.  The parent keeps only
// the returned receipt.
func (vs *VSpace) ForChild(childSlots *caps.WeakSlots[caps.Child]) (*ChildVSpace, error) {
	rootSlot, err := childSlots.TakeSlot()
	if err != nil {
		return nil, err
	}
	childRoot, err := caps.MoveRawToSlot(vs.cs, vs.root, &rootSlot)
	if err != nil {
		return nil, err
	}
	holdings := vs.buddy.Drain()
	moved := make([]caps.Cap[caps.Untyped, caps.Child], 0, len(holdings))
	for _, ut := range holdings {
		one, err := childSlots.TakeSlot()
		if err != nil {
			return nil, err
		}
		c, err := caps.MoveToSlot(vs.cs, ut, &one)
		if err != nil {
			return nil, err
		}
		moved = append(moved, c)
	}
	vs.root = 0
	return &ChildVSpace{Root: childRoot, ASID: vs.asid, Untypeds: moved}, nil
}

// mapPage maps one page, materializing whatever intermediate levels the
// kernel reports missing, each at most once.
func (vs *VSpace) mapPage(page kern.Cptr, vaddr uint64, rights kern.CapRights, attrs kern.VMAttributes) error {
	if vaddr&(1<<kern.PageBits-1) != 0 {
		return ErrAddrNotPageAligned
	}
	err := vs.cs.K.PageMap(page, vs.root, vaddr, rights, attrs)
	if err == nil {
		return nil
	}
	if !kern.IsCode(err, kern.CodeFailedLookup) {
		return &MapError{Level: "page", Vaddr: vaddr, Err: err}
	}
	if err := vs.ensureLevel(0, vaddr, attrs); err != nil {
		return err
	}
	if err := vs.cs.K.PageMap(page, vs.root, vaddr, rights, attrs); err != nil {
		return &MapError{Level: "page", Vaddr: vaddr, Err: err}
	}
	return nil
}

// ensureLevel materializes the i-th intermediate level over vaddr:
// allocate an untyped of the level's size, retype it, map it.  A
// missing level above is handled by recursing before the single retry;
// running past the root means the fault was never really a missing
// level.
func (vs *VSpace) ensureLevel(i int, vaddr uint64, attrs kern.VMAttributes) error {
	if i >= len(vs.arch.levels) {
		return &MapError{Level: "root", Vaddr: vaddr, Err: fmt.Errorf("lookup failed above the top paging level")}
	}
	lv := vs.arch.levels[i]
	ut, err := vs.buddy.AllocWeak(lv.sizeBits, &vs.slots)
	if err != nil {
		return &MapError{Level: lv.name, Vaddr: vaddr, Err: fmt.Errorf("%w: %v", ErrIntermediateRetype, err)}
	}
	one, err := vs.slots.TakeSlot()
	if err != nil {
		return &MapError{Level: lv.name, Vaddr: vaddr, Err: fmt.Errorf("%w: %v", ErrIntermediateRetype, err)}
	}
	obj, err := lv.retype(vs.cs, ut, &one)
	if err != nil {
		return &MapError{Level: lv.name, Vaddr: vaddr, Err: fmt.Errorf("%w: %v", ErrIntermediateRetype, err)}
	}
	err = lv.mapObj(vs.cs.K, obj, vs.root, vaddr, attrs)
	if err == nil {
		return nil
	}
	if !kern.IsCode(err, kern.CodeFailedLookup) {
		return &MapError{Level: lv.name, Vaddr: vaddr, Err: err}
	}
	if err := vs.ensureLevel(i+1, vaddr, attrs); err != nil {
		return err
	}
	if err := lv.mapObj(vs.cs.K, obj, vs.root, vaddr, attrs); err != nil {
		return &MapError{Level: lv.name, Vaddr: vaddr, Err: err}
	}
	return nil
}
