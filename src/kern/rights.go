package kern

// CapRights is the access-rights mask applied when a capability is copied
// or a page is mapped.
type CapRights uint8

const (
	CanRead  CapRights = 1 << 0
	CanWrite CapRights = 1 << 1
	CanGrant CapRights = 1 << 2
)

const (
	ReadOnly  = CanRead
	ReadWrite = CanRead | CanWrite
	AllRights = CanRead | CanWrite | CanGrant
)

func (r CapRights) String() string {
	buf := [3]byte{'-', '-', '-'}
	if r&CanRead != 0 {
		buf[0] = 'r'
	}
	if r&CanWrite != 0 {
		buf[1] = 'w'
	}
	if r&CanGrant != 0 {
		buf[2] = 'g'
	}
	return string(buf[:])
}

// Subset returns true if every right in r is also in of.
func (r CapRights) Subset(of CapRights) bool {
	return r&of == r
}

// VMAttributes carries the architecture's cacheability and execute bits
// for a mapping.
type VMAttributes uint64

const (
	VMCacheable VMAttributes = 1 << 0
	// VMExecuteNever marks the mapping no-execute.
	VMExecuteNever VMAttributes = 1 << 2
)

const DefaultVMAttributes = VMCacheable

// DeviceVMAttributes is what device regions are mapped with: uncached and
// never executable.
const DeviceVMAttributes = VMExecuteNever
