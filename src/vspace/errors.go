package vspace

import (
	"errors"
	"fmt"
)

var (
	// ErrAddrNotPageAligned means the caller asked for a mapping at an
	// address that is not a page multiple.
	ErrAddrNotPageAligned = errors.New("virtual address is not page aligned")

	// ErrASIDMismatch means a region operation was issued against a
	// VSpace other than the one the region is mapped in.
	ErrASIDMismatch = errors.New("region belongs to a different address space")

	// ErrInsufficientAddressSpace means the watermarks have closed past
	// the point where a mapping of the requested size fits.
	ErrInsufficientAddressSpace = errors.New("not enough address space left to map the region")

	// ErrExceededAddressableSpace means the requested address runs off
	// the end of what the architecture can translate.
	ErrExceededAddressableSpace = errors.New("mapping exceeds the addressable range")

	// ErrTooManyPagesAtOnce bounds a single mapping call.
	ErrTooManyPagesAtOnce = errors.New("tried to map too many pages at once")

	// ErrInvalidRegionSize covers regions below a page, above the
	// architecture, or a strengthening whose recorded size disagrees.
	ErrInvalidRegionSize = errors.New("invalid region size")

	// ErrIntermediateRetype means the untyped pool could not produce a
	// missing intermediate paging object.
	ErrIntermediateRetype = errors.New("could not make an intermediate paging object")

	// ErrRegionMapped and ErrRegionNotMapped guard the region state
	// machine: map wants an unmapped region, unmap a mapped one.
	ErrRegionMapped    = errors.New("region is already mapped")
	ErrRegionNotMapped = errors.New("region is not mapped")

	// ErrRegionNotShared means a shared-only operation was handed an
	// exclusive region.
	ErrRegionNotShared = errors.New("region has not been shared")
)

// MapError is a mapping failure at a named paging level.  The wrapped
// error is the kernel's refusal, or ErrIntermediateRetype when the level
// could not be materialized at all.
type MapError struct {
	Level string
	Vaddr uint64
	Err   error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("mapping %s at %#x: %v", e.Level, e.Vaddr, e.Err)
}

func (e *MapError) Unwrap() error {
	return e.Err
}
