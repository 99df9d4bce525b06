package caps

import (
	"composure/src/kern"
)

// Wrapping lifts a raw cptr from boot info into a typed handle.  The
// caller vouches that the kernel object behind the cptr really has the
// claimed kind; nothing downstream rechecks.  Used once at bootstrap and
// never on caps this package created itself.

func WrapUntyped(cptr kern.Cptr, sizeBits uint8, kind MemoryKind) Cap[Untyped, Local] {
	return capAt[Untyped, Local](cptr, Untyped{SizeBits: sizeBits, Kind: kind})
}

func WrapPage(cptr kern.Cptr, kind MemoryKind) Cap[Page, Local] {
	return capAt[Page, Local](cptr, Page{Kind: kind})
}

func WrapPageGlobalDir(cptr kern.Cptr, asid uint64) Cap[PageGlobalDir, Local] {
	return capAt[PageGlobalDir, Local](cptr, PageGlobalDir{ASID: asid})
}

func WrapPageDirRoot(cptr kern.Cptr, asid uint64) Cap[PageDir, Local] {
	return capAt[PageDir, Local](cptr, PageDir{ASID: asid})
}
