package caps

import (
	"errors"

	"composure/src/kern"
)

// ErrASIDControlExhausted is returned when every pool the kernel will
// ever grant has already been made.
var ErrASIDControlExhausted = errors.New("asid control has no pools left")

// ErrASIDPoolExhausted is returned when a pool has handed out all of its
// identifiers.
var ErrASIDPoolExhausted = errors.New("asid pool has no identifiers left")

// ErrASIDAlreadyAssigned is returned when a paging root that already
// carries an identifier is offered another one.
var ErrASIDAlreadyAssigned = errors.New("paging root already has an asid")

// ASIDControl is the singleton authority over address-space identifier
// pools.  The kernel grants a fixed number of pools per boot; the
// remaining count tracks how many are left to make.
type ASIDControl struct {
	cs        *CSpace
	cptr      kern.Cptr
	nextPool  uint64
	remaining uint64
}

// NewASIDControl wraps the boot-provided ASID control cap.  Call once.
func NewASIDControl(cs *CSpace, cptr kern.Cptr) *ASIDControl {
	return &ASIDControl{cs: cs, cptr: cptr, remaining: kern.ASIDPoolCount}
}

// PoolsRemaining reports how many pools can still be made.
func (ac *ASIDControl) PoolsRemaining() uint64 {
	return ac.remaining
}

// MakePool trades an untyped of pool size for a fresh ASID pool,
// consuming the untyped and one slot.
func (ac *ASIDControl) MakePool(ut Cap[Untyped, Local], dest *Slots[Local]) (Cap[ASIDPool, Local], error) {
	var none Cap[ASIDPool, Local]
	if ac.remaining == 0 {
		return none, ErrASIDControlExhausted
	}
	if ut.Obj.SizeBits < kern.ASIDPoolBits {
		return none, ErrInvalidUntypedSize
	}
	if ut.Obj.Kind.Device {
		return none, ErrDeviceRetype
	}
	slot, err := dest.alloc1()
	if err != nil {
		return none, err
	}
	if err := ac.cs.K.ASIDControlMakePool(ac.cptr, ut.Cptr(), slot.destSlot()); err != nil {
		return none, err
	}
	id := ac.nextPool
	ac.nextPool++
	ac.remaining--
	return capAt[ASIDPool, Local](slot.capCptr(), ASIDPool{PoolID: id, Remaining: kern.ASIDPoolSize}), nil
}

// UnassignedASID is an identifier drawn from a pool but not yet bound to
// a paging root.  Binding consumes it.
type UnassignedASID struct {
	Value uint64
	pool  kern.Cptr
}

// AllocASID draws the next identifier out of the pool.  Values start at
// one, zero meaning unassigned, and are unique across every pool made
// this boot.
func AllocASID(pool *Cap[ASIDPool, Local]) (UnassignedASID, error) {
	if pool.Obj.Remaining == 0 {
		return UnassignedASID{}, ErrASIDPoolExhausted
	}
	value := pool.Obj.PoolID*kern.ASIDPoolSize + pool.Obj.NextIndex + 1
	pool.Obj.NextIndex++
	pool.Obj.Remaining--
	return UnassignedASID{Value: value, pool: pool.Cptr()}, nil
}

// pagingRootKind covers the kinds that can sit at the top of a paging
// hierarchy: the global directory on four-level architectures, the
// directory itself on two-level ones.
type pagingRootKind[K any] interface {
	Kind
	withASID(uint64) K
	currentASID() uint64
}

// AssignASID binds the identifier to an unassigned paging root, making
// the root mappable.  One shot: an already assigned root is refused
// before the kernel is asked.
func AssignASID[K pagingRootKind[K]](cs *CSpace, a UnassignedASID, root Cap[K, Local]) (Cap[K, Local], error) {
	if root.Obj.currentASID() != 0 {
		return root, ErrASIDAlreadyAssigned
	}
	if err := cs.K.ASIDPoolAssign(a.pool, root.Cptr()); err != nil {
		return root, err
	}
	return capAt[K, Local](root.Cptr(), root.Obj.withASID(a.Value)), nil
}
