package vspace

import (
	"composure/src/caps"
	"composure/src/kern"
)

// level is one intermediate step of the paging hierarchy, leaf-most
// first.  retype and mapObj are bound to concrete kinds when the Arch is
// built, so nothing dispatches on object type while mapping.
type level struct {
	name     string
	sizeBits uint8
	spanBits uint8
	retype   func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local]) (kern.Cptr, error)
	mapObj   func(k kern.Kernel, obj kern.Cptr, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error
}

// Arch describes one paging geometry: how wide the addressable range is,
// how to make a root, and the chain of intermediate levels between a
// page and that root.
type Arch struct {
	Name      string
	VaddrBits uint8
	levels    []level
	newRoot   func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local], pool *caps.Cap[caps.ASIDPool, caps.Local]) (kern.Cptr, uint64, error)
}

// Depth is how many intermediate levels sit between a page and the root.
func (a *Arch) Depth() int {
	return len(a.levels)
}

// AArch64 is the four-level 48-bit geometry: global directory at the
// root, then upper directory, directory, table, page.
func AArch64() *Arch {
	return &Arch{
		Name:      "aarch64",
		VaddrBits: 48,
		newRoot: func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local], pool *caps.Cap[caps.ASIDPool, caps.Local]) (kern.Cptr, uint64, error) {
			pgd, err := caps.Retype[caps.PageGlobalDir, caps.Local](cs, ut, dest)
			if err != nil {
				return 0, 0, err
			}
			a, err := caps.AllocASID(pool)
			if err != nil {
				return 0, 0, err
			}
			assigned, err := caps.AssignASID(cs, a, pgd)
			if err != nil {
				return 0, 0, err
			}
			return assigned.Cptr(), assigned.Obj.ASID, nil
		},
		levels: []level{
			{
				name:     "page table",
				sizeBits: kern.PageTableBits,
				spanBits: 21,
				retype: func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local]) (kern.Cptr, error) {
					c, err := caps.Retype[caps.PageTable, caps.Local](cs, ut, dest)
					if err != nil {
						return 0, err
					}
					return c.Cptr(), nil
				},
				mapObj: func(k kern.Kernel, obj, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error {
					return k.PageTableMap(obj, vroot, vaddr, attrs)
				},
			},
			{
				name:     "page directory",
				sizeBits: kern.PageDirectoryBits,
				spanBits: 30,
				retype: func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local]) (kern.Cptr, error) {
					c, err := caps.Retype[caps.PageDir, caps.Local](cs, ut, dest)
					if err != nil {
						return 0, err
					}
					return c.Cptr(), nil
				},
				mapObj: func(k kern.Kernel, obj, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error {
					return k.PageDirectoryMap(obj, vroot, vaddr, attrs)
				},
			},
			{
				name:     "page upper directory",
				sizeBits: kern.PageUpperDirectoryBits,
				spanBits: 39,
				retype: func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local]) (kern.Cptr, error) {
					c, err := caps.Retype[caps.PageUpperDir, caps.Local](cs, ut, dest)
					if err != nil {
						return 0, err
					}
					return c.Cptr(), nil
				},
				mapObj: func(k kern.Kernel, obj, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error {
					return k.PageUpperDirectoryMap(obj, vroot, vaddr, attrs)
				},
			},
		},
	}
}

// ARMv7 is the two-level 32-bit geometry: the page directory is the
// root, page tables hang directly off it.
func ARMv7() *Arch {
	return &Arch{
		Name:      "armv7",
		VaddrBits: 32,
		newRoot: func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local], pool *caps.Cap[caps.ASIDPool, caps.Local]) (kern.Cptr, uint64, error) {
			pd, err := caps.Retype[caps.PageDir, caps.Local](cs, ut, dest)
			if err != nil {
				return 0, 0, err
			}
			a, err := caps.AllocASID(pool)
			if err != nil {
				return 0, 0, err
			}
			assigned, err := caps.AssignASID(cs, a, pd)
			if err != nil {
				return 0, 0, err
			}
			return assigned.Cptr(), assigned.Obj.ASID, nil
		},
		levels: []level{
			{
				name:     "page table",
				sizeBits: kern.PageTableBits,
				spanBits: 21,
				retype: func(cs *caps.CSpace, ut caps.Cap[caps.Untyped, caps.Local], dest *caps.Slots[caps.Local]) (kern.Cptr, error) {
					c, err := caps.Retype[caps.PageTable, caps.Local](cs, ut, dest)
					if err != nil {
						return 0, err
					}
					return c.Cptr(), nil
				},
				mapObj: func(k kern.Kernel, obj, vroot kern.Cptr, vaddr uint64, attrs kern.VMAttributes) error {
					return k.PageTableMap(obj, vroot, vaddr, attrs)
				},
			},
		},
	}
}
