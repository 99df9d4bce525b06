package kern

// Cptr is a capability pointer: an integer handle interpreted relative to
// the calling thread's CSpace root.
type Cptr uint64

// Badge is the integer identity minted onto endpoint and notification
// capabilities.
type Badge uint64

// WordBits is the width of a cptr.  A CNode whose guard plus radix add up
// to WordBits can be addressed with raw slot offsets.
const WordBits = 64

// SlotBits is the log2 size in bytes of one CNode slot, so a CNode of
// radix R occupies 2^(R+SlotBits) bytes.
const SlotBits = 5

// KernelRetypeFanOutLimit is the build-time bound on how many objects one
// retype invocation may produce.
const KernelRetypeFanOutLimit = 256

// RootTaskStackPageTableCount is how many page tables the root task
// reserves up front for its own stack region.
const RootTaskStackPageTableCount = 16

// ObjectType names every kind of kernel object the core can retype an
// untyped into.
type ObjectType int

const (
	UntypedObject ObjectType = iota
	TCBObject
	EndpointObject
	NotificationObject
	CNodeObject
	SmallPageObject
	PageTableObject
	PageDirectoryObject
	PageUpperDirectoryObject
	PageGlobalDirectoryObject
	ASIDPoolObject
)

var objectTypeNames = map[ObjectType]string{
	UntypedObject:             "Untyped",
	TCBObject:                 "TCB",
	EndpointObject:            "Endpoint",
	NotificationObject:        "Notification",
	CNodeObject:               "CNode",
	SmallPageObject:           "SmallPage",
	PageTableObject:           "PageTable",
	PageDirectoryObject:       "PageDirectory",
	PageUpperDirectoryObject:  "PageUpperDirectory",
	PageGlobalDirectoryObject: "PageGlobalDirectory",
	ASIDPoolObject:            "ASIDPool",
}

func (o ObjectType) String() string {
	if s, ok := objectTypeNames[o]; ok {
		return s
	}
	return "UnknownObject"
}

// Size in bits of the fixed-size kernel objects.  Untypeds and CNodes are
// variable sized and are not in this table.
const (
	PageBits                = 12
	PageTableBits           = 12
	PageDirectoryBits       = 12
	PageUpperDirectoryBits  = 12
	PageGlobalDirectoryBits = 12
	TCBBits                 = 11
	EndpointBits            = 4
	NotificationBits        = 6
	ASIDPoolBits            = 12
)

// ASIDPoolCount is how many pools the ASID control authority can mint
// over its lifetime, and ASIDPoolSize how many ASIDs each pool hands out.
const (
	ASIDPoolCount = 8
	ASIDPoolSize  = 1024
)

// FixedSizeBits returns the size in bits of an object of this type, when
// the type has a statically known size.  The second return value is false
// for variable-sized kinds (untypeds, CNodes).
func (o ObjectType) FixedSizeBits() (uint8, bool) {
	switch o {
	case TCBObject:
		return TCBBits, true
	case EndpointObject:
		return EndpointBits, true
	case NotificationObject:
		return NotificationBits, true
	case SmallPageObject:
		return PageBits, true
	case PageTableObject:
		return PageTableBits, true
	case PageDirectoryObject:
		return PageDirectoryBits, true
	case PageUpperDirectoryObject:
		return PageUpperDirectoryBits, true
	case PageGlobalDirectoryObject:
		return PageGlobalDirectoryBits, true
	case ASIDPoolObject:
		return ASIDPoolBits, true
	}
	return 0, false
}
