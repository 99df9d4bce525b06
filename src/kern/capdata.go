package kern

// CapData is the per-cap metadata word written by CNodeMutate; for CNode
// caps it holds the guard value and the number of cptr bits the guard
// consumes.
type CapData struct {
	Guard     uint64
	GuardBits uint8
}

// CapDataNew encodes a guard.  This is the kernel's CNode_CapData_new.
func CapDataNew(guard uint64, guardBits uint8) CapData {
	return CapData{Guard: guard, GuardBits: guardBits}
}

// GuardForRadix returns the zero guard sized so that guard plus radix
// consume the full cptr width.  A CNode programmed with this guard can be
// indexed with raw cptrs: the cptr value IS the slot offset.
func GuardForRadix(radix uint8) CapData {
	return CapDataNew(0, WordBits-radix)
}
