package caps

import (
	"testing"

	"composure/src/kern"
	"composure/src/kern/pretend"
)

const testRootRadix = 16

// firstFreeSlot leaves room for the bootstrap caps and the untypeds the
// tests place by hand.
const firstFreeSlot = 64

func newTestSpace(t *testing.T) (*pretend.Kernel, *CSpace) {
	t.Helper()
	k := pretend.NewKernel(testRootRadix)
	cs := NewCSpace(k, pretend.InitCNode, testRootRadix)
	return k, cs
}

// placeUntyped hands the test a general untyped of the given size,
// parked at cptr in the root CNode.
func placeUntyped(t *testing.T, k *pretend.Kernel, sizeBits uint8, cptr kern.Cptr) (Cap[Untyped, Local], uint64) {
	t.Helper()
	paddr := k.AddUntyped(sizeBits, cptr)
	return capAt[Untyped, Local](cptr, Untyped{SizeBits: sizeBits, Kind: General}), paddr
}

func placeDeviceUntyped(t *testing.T, k *pretend.Kernel, sizeBits uint8, paddr uint64, cptr kern.Cptr) Cap[Untyped, Local] {
	t.Helper()
	k.AddDeviceUntyped(sizeBits, paddr, cptr)
	return capAt[Untyped, Local](cptr, Untyped{SizeBits: sizeBits, Kind: DeviceAt(paddr)})
}
