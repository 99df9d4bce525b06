// Package caps is the typed capability discipline layered over the
// kernel ABI in kern.  A Cap carries its object's kind and state in its
// type; slot ranges account for CNode space; the untyped buddy turns raw
// memory grants into exactly-sized untypeds; retype turns untypeds into
// typed objects.  Handles are linear: operations that consume a handle
// take it by value and return the successor, and the old value must not
// be used again.
package caps

// Role says which CSpace a capability or slot range is meaningful in.
// Local handles are usable right now through the calling thread's CSpace
// root.  Child handles name slots in some child's CSpace and only mean
// something once that child runs.
type Role interface {
	crole() string
}

// Local is the role of handles in the current thread's CSpace.
type Local struct{}

func (Local) crole() string { return "local" }

// Child is the role of handles that live in a child CSpace.
type Child struct{}

func (Child) crole() string { return "child" }
