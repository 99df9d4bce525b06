package caps

import (
	"fmt"

	"composure/src/kern"
)

// MemoryKind distinguishes general memory from device memory, which has a
// fixed physical address the owner needs to know.
type MemoryKind struct {
	Device bool
	Paddr  uint64
}

// General is the kind of ordinary RAM-backed memory.
var General = MemoryKind{}

// DeviceAt is the kind of device memory based at the given physical
// address.
func DeviceAt(paddr uint64) MemoryKind {
	return MemoryKind{Device: true, Paddr: paddr}
}

// half returns the kinds of the two halves of a split, preserving the
// physical address arithmetic for device memory.
func (m MemoryKind) half(sizeBits uint8) (MemoryKind, MemoryKind) {
	if !m.Device {
		return General, General
	}
	return m, DeviceAt(m.Paddr + 1<<(sizeBits-1))
}

func (m MemoryKind) String() string {
	if m.Device {
		return fmt.Sprintf("device@%#x", m.Paddr)
	}
	return "general"
}

// Kind is the compile-time tag carried by every Cap describing what kind
// of kernel object it points at, plus whatever state that kind tracks.
type Kind interface {
	// objectType is the retype target for this kind; kinds that cannot
	// be retyped directly (Untyped, CNode) still report their type.
	objectType() kern.ObjectType
}

// Untyped is an unformatted block of physical memory of power-of-two
// size.
type Untyped struct {
	SizeBits uint8
	Kind     MemoryKind
}

func (Untyped) objectType() kern.ObjectType { return kern.UntypedObject }
func (u Untyped) afterCopy() Untyped        { return u }
func (Untyped) deletableCap()               {}

// Page is a leaf granule.  Its mapped state is external metadata the
// kernel tracks too; the handle mirrors it so mapping an already-mapped
// page is caught before the syscall.
type Page struct {
	Mapped bool
	Vaddr  uint64
	ASID   uint64
	Kind   MemoryKind
}

func (Page) objectType() kern.ObjectType { return kern.SmallPageObject }

// afterCopy drops the mapped state: a copy of a page cap is an unmapped
// view of the same frame.
func (p Page) afterCopy() Page { return Page{Kind: p.Kind} }
func (Page) deletableCap()     {}

// PageTable is the leaf-most intermediate paging level.
type PageTable struct {
	Mapped bool
	Vaddr  uint64
}

func (PageTable) objectType() kern.ObjectType { return kern.PageTableObject }
func (PageTable) retypeDefault()              {}

// PageDir is the level above the page table.  On two-level architectures
// it doubles as the paging root, in which case ASID is meaningful and
// Mapped never is.
type PageDir struct {
	Mapped bool
	Vaddr  uint64
	ASID   uint64
}

func (PageDir) objectType() kern.ObjectType { return kern.PageDirectoryObject }
func (PageDir) retypeDefault()              {}
func (p PageDir) withASID(a uint64) PageDir { p.ASID = a; return p }
func (p PageDir) currentASID() uint64       { return p.ASID }

// PageUpperDir is the level above the page directory.
type PageUpperDir struct {
	Mapped bool
	Vaddr  uint64
}

func (PageUpperDir) objectType() kern.ObjectType { return kern.PageUpperDirectoryObject }
func (PageUpperDir) retypeDefault()              {}

// PageGlobalDir is a paging root.  ASID is zero until one is assigned.
type PageGlobalDir struct {
	ASID uint64
}

func (PageGlobalDir) objectType() kern.ObjectType         { return kern.PageGlobalDirectoryObject }
func (PageGlobalDir) retypeDefault()                      {}
func (p PageGlobalDir) withASID(a uint64) PageGlobalDir   { p.ASID = a; return p }
func (p PageGlobalDir) currentASID() uint64               { return p.ASID }

// CNode is a capability table of 2^Radix slots.
type CNode struct {
	Radix uint8
}

func (CNode) objectType() kern.ObjectType { return kern.CNodeObject }

// TCB is a thread control block.
type TCB struct{}

func (TCB) objectType() kern.ObjectType { return kern.TCBObject }
func (TCB) retypeDefault()              {}
func (TCB) deletableCap()               {}

// Endpoint is a synchronous IPC endpoint; Badge is nonzero on minted
// copies.
type Endpoint struct {
	Badge kern.Badge
}

func (Endpoint) objectType() kern.ObjectType { return kern.EndpointObject }
func (e Endpoint) afterCopy() Endpoint       { return e }
func (Endpoint) retypeDefault()              {}
func (Endpoint) deletableCap()               {}
func (Endpoint) mintableCap()                {}

// Notification is an asynchronous signal word; Badge is nonzero on minted
// copies.
type Notification struct {
	Badge kern.Badge
}

func (Notification) objectType() kern.ObjectType { return kern.NotificationObject }
func (n Notification) afterCopy() Notification   { return n }
func (Notification) retypeDefault()              {}
func (Notification) deletableCap()               {}
func (Notification) mintableCap()                {}

// ASIDPool hands out address-space identifiers one at a time.  PoolID
// is the pool's position among all pools the control authority ever
// made, so identifiers from different pools never collide.
type ASIDPool struct {
	PoolID    uint64
	NextIndex uint64
	Remaining uint64
}

func (ASIDPool) objectType() kern.ObjectType { return kern.ASIDPoolObject }
