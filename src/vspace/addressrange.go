package vspace

// addressRange tracks the unclaimed middle of a virtual address space
// with two watermarks: bottom grows upward as regions are mapped,
// top grows downward.  Nothing between them is handed out twice; space
// below bottom is never reclaimed, fragmentation being the price of
// never tracking a free list.
type addressRange struct {
	bottom uint64
	top    uint64
}

// observeMapping folds an externally chosen mapping into the watermarks.
// A mapping outside the open range costs nothing; one inside it pushes
// whichever watermark is nearer, ties going to bottom so the high end
// stays free for stacks.
func (r *addressRange) observeMapping(start uint64, sizeBits uint8) {
	end := start + 1<<sizeBits
	if end <= r.bottom || start >= r.top {
		return
	}
	if start < r.bottom {
		r.bottom = end
		return
	}
	if end > r.top {
		r.top = start
		return
	}
	fromBottom := start - r.bottom
	fromTop := r.top - end
	if fromBottom <= fromTop {
		r.bottom = end
	} else {
		r.top = start
	}
}

// autoPropose returns the address an automatically placed mapping of
// 2^sizeBits bytes would get.  It does not advance the watermark; that
// happens when the mapping is observed.
func (r *addressRange) autoPropose(sizeBits uint8) (uint64, error) {
	end := r.bottom + 1<<sizeBits
	if end < r.bottom || end > r.top {
		return 0, ErrInsufficientAddressSpace
	}
	return r.bottom, nil
}
