// Package kern is the boundary between the typed capability discipline
// and the microkernel underneath it.  It defines the object kinds, rights,
// guard encoding, and error classes of the kernel ABI, plus the Kernel
// interface through which every syscall the core makes is issued.  The
// core never traps directly; handing it a Kernel is what binds it to a
// real kernel, and handing it the pretend package's model is what makes
// the whole discipline testable on a host.
package kern

// A DestSlot names a capability slot to receive the result of a syscall:
// an index addressed through a CNode at some depth within the caller's
// CSpace.
type DestSlot struct {
	Root  Cptr
	Index uint64
	Depth uint8
}

// Kernel is every kernel operation the core and its collaborators invoke.
// Cptr arguments are interpreted in the calling thread's CSpace.  Errors
// are *SyscallError values carrying the call name and the kernel's code.
type Kernel interface {
	// UntypedRetype turns part of the untyped ut into count objects of
	// the given type, placed in consecutive slots starting at dest.
	// sizeBits is only meaningful for variable-sized kinds (untypeds
	// and CNodes, where it is the radix).
	UntypedRetype(ut Cptr, objType ObjectType, sizeBits uint8, dest DestSlot, count uint64) error

	CNodeCopy(dest DestSlot, src DestSlot, rights CapRights) error
	CNodeMint(dest DestSlot, src DestSlot, rights CapRights, badge Badge) error
	CNodeMove(dest DestSlot, src DestSlot) error
	CNodeDelete(slot DestSlot) error
	CNodeRevoke(slot DestSlot) error
	// CNodeMutate moves src to dest while rewriting its cap data; it is
	// how a fresh CNode gets its guard programmed.
	CNodeMutate(dest DestSlot, src DestSlot, data CapData) error

	ASIDControlMakePool(ctrl Cptr, ut Cptr, dest DestSlot) error
	ASIDPoolAssign(pool Cptr, vroot Cptr) error

	PageMap(page Cptr, vroot Cptr, vaddr uint64, rights CapRights, attrs VMAttributes) error
	PageUnmap(page Cptr) error
	PageTableMap(pt Cptr, vroot Cptr, vaddr uint64, attrs VMAttributes) error
	PageDirectoryMap(pd Cptr, vroot Cptr, vaddr uint64, attrs VMAttributes) error
	PageUpperDirectoryMap(pud Cptr, vroot Cptr, vaddr uint64, attrs VMAttributes) error

	// Thread and IPC operations.  The core itself does not call these;
	// they are on the interface so collaborators (process construction,
	// IPC primitives) bind to the same kernel the core does.
	TCBConfigure(tcb Cptr, faultEP Cptr, cspaceRoot Cptr, cspaceData CapData, vspaceRoot Cptr, ipcBuffer uint64, ipcBufferFrame Cptr) error
	TCBSetPriority(tcb Cptr, authority Cptr, priority uint8) error
	TCBWriteRegisters(tcb Cptr, pc uint64, sp uint64) error
	TCBResume(tcb Cptr) error

	Yield()
	Signal(notification Cptr) error
	Wait(notification Cptr) (Badge, error)
	Poll(notification Cptr) (Badge, bool, error)
	Send(endpoint Cptr, msg []uint64) error
	Call(endpoint Cptr, msg []uint64) ([]uint64, error)
	Recv(endpoint Cptr) ([]uint64, Badge, error)
	ReplyRecv(endpoint Cptr, reply []uint64) ([]uint64, Badge, error)
}
