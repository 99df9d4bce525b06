package gen

import (
	"sync/atomic"
	"unsafe"
)

// ArrayQueue is a bounded multi-producer multi-consumer queue over a flat
// block of memory.  The block can be ordinary heap memory or a page that
// is mapped into several address spaces at once: the layout holds no
// absolute pointers, every slot is found by offset from the queue header,
// so two mappings of the same frames see the same queue.
//
// Each slot carries a stamp whose high bits count laps around the ring
// and whose low bits are the slot index.  A slot is ready for a producer
// when its stamp equals the tail, and ready for a consumer when its stamp
// is one past the head.
type ArrayQueue[T any] struct {
	mem  []byte // nil when the queue lives in caller-owned memory
	base unsafe.Pointer
}

type qheader struct {
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
	_    [56]byte
	capv   uint64
	oneLap uint64
}

type qslot[T any] struct {
	stamp atomic.Uint64
	value T
}

const qheaderSize = unsafe.Sizeof(qheader{})

// QueueBytes returns the number of bytes a queue of the given capacity
// occupies, header included.  Callers constructing a queue inside a shared
// page use this to check the page is big enough.
func QueueBytes[T any](capacity int) uintptr {
	var s qslot[T]
	return qheaderSize + uintptr(capacity)*unsafe.Sizeof(s)
}

// NewArrayQueue returns a queue of the given capacity backed by ordinary
// memory.  Capacity must be at least 1 or this panics.
func NewArrayQueue[T any](capacity int) *ArrayQueue[T] {
	if capacity < 1 {
		panic("ArrayQueue capacity must be at least 1")
	}
	mem := make([]byte, QueueBytes[T](capacity))
	q := &ArrayQueue[T]{mem: mem, base: unsafe.Pointer(&mem[0])}
	q.init(capacity)
	return q
}

// NewArrayQueueAt constructs a queue of the given capacity in place at
// base, which must be 8-byte aligned and hold at least space bytes.  The
// memory must contain no Go pointers as far as the collector is concerned
// (a mapped page qualifies).  Returns false when space is too small.
// Elements stored in a shared queue must themselves be free of pointers.
func NewArrayQueueAt[T any](base unsafe.Pointer, space uintptr, capacity int) (*ArrayQueue[T], bool) {
	if capacity < 1 || QueueBytes[T](capacity) > space {
		return nil, false
	}
	if uintptr(base)&7 != 0 {
		return nil, false
	}
	q := &ArrayQueue[T]{base: base}
	q.init(capacity)
	return q, true
}

// AttachArrayQueue returns a handle onto a queue some other mapping has
// already constructed at base.  No fields are initialized; the element
// type and capacity must match the constructing side.
func AttachArrayQueue[T any](base unsafe.Pointer) *ArrayQueue[T] {
	return &ArrayQueue[T]{base: base}
}

func (q *ArrayQueue[T]) init(capacity int) {
	h := q.header()
	h.head.Store(0)
	h.tail.Store(0)
	h.capv = uint64(capacity)
	h.oneLap = nextPowerOfTwo(uint64(capacity) + 1)
	for i := 0; i < capacity; i++ {
		q.slotAt(uint64(i)).stamp.Store(uint64(i))
	}
}

func (q *ArrayQueue[T]) header() *qheader {
	return (*qheader)(q.base)
}

func (q *ArrayQueue[T]) slotAt(index uint64) *qslot[T] {
	var s qslot[T]
	return (*qslot[T])(unsafe.Add(q.base, qheaderSize+uintptr(index)*unsafe.Sizeof(s)))
}

// Capacity returns the number of elements the queue can hold.
func (q *ArrayQueue[T]) Capacity() int {
	return int(q.header().capv)
}

// Push adds v at the tail of the queue.  It returns false when the queue
// is full.
func (q *ArrayQueue[T]) Push(v T) bool {
	h := q.header()
	oneLap := h.oneLap
	capacity := h.capv
	var backoff Backoff
	tail := h.tail.Load()
	for {
		index := tail & (oneLap - 1)
		lap := tail &^ (oneLap - 1)
		slot := q.slotAt(index)
		stamp := slot.stamp.Load()

		if tail == stamp {
			var newTail uint64
			if index+1 < capacity {
				newTail = tail + 1
			} else {
				// wrap to index zero of the next lap
				newTail = lap + oneLap
			}
			if h.tail.CompareAndSwap(tail, newTail) {
				slot.value = v
				slot.stamp.Store(tail + 1)
				return true
			}
			backoff.Spin()
			tail = h.tail.Load()
		} else if stamp+oneLap == tail+1 {
			// the slot has not been consumed for a full lap; the
			// queue may be full
			head := h.head.Load()
			if head+oneLap == tail {
				return false
			}
			backoff.Spin()
			tail = h.tail.Load()
		} else {
			backoff.Snooze()
			tail = h.tail.Load()
		}
	}
}

// Pop removes and returns the element at the head of the queue.  The
// second return value is false when the queue is empty.
func (q *ArrayQueue[T]) Pop() (T, bool) {
	var zero T
	h := q.header()
	oneLap := h.oneLap
	capacity := h.capv
	var backoff Backoff
	head := h.head.Load()
	for {
		index := head & (oneLap - 1)
		lap := head &^ (oneLap - 1)
		slot := q.slotAt(index)
		stamp := slot.stamp.Load()

		if head+1 == stamp {
			var newHead uint64
			if index+1 < capacity {
				newHead = head + 1
			} else {
				newHead = lap + oneLap
			}
			if h.head.CompareAndSwap(head, newHead) {
				v := slot.value
				slot.value = zero
				// release the slot for the producer one lap later
				slot.stamp.Store(head + oneLap)
				return v, true
			}
			backoff.Spin()
			head = h.head.Load()
		} else if stamp == head {
			tail := h.tail.Load()
			if tail == head {
				return zero, false
			}
			backoff.Spin()
			head = h.head.Load()
		} else {
			backoff.Snooze()
			head = h.head.Load()
		}
	}
}

// Len returns the number of elements currently in the queue.  Under
// contention this is necessarily a snapshot; the result is clamped to
// [0, capacity].
func (q *ArrayQueue[T]) Len() int {
	h := q.header()
	oneLap := h.oneLap
	capacity := h.capv
	for {
		tail := h.tail.Load()
		head := h.head.Load()
		// retry until head and tail come from one consistent view
		if h.tail.Load() != tail {
			continue
		}
		hix := head & (oneLap - 1)
		tix := tail & (oneLap - 1)
		var n uint64
		switch {
		case hix < tix:
			n = tix - hix
		case hix > tix:
			n = capacity - hix + tix
		case tail == head:
			n = 0
		default:
			n = capacity
		}
		if n > capacity {
			n = capacity
		}
		return int(n)
	}
}

// IsEmpty returns true when the queue holds no elements.
func (q *ArrayQueue[T]) IsEmpty() bool {
	h := q.header()
	head := h.head.Load()
	tail := h.tail.Load()
	// the tail can lag the head briefly during a pop; empty is when
	// they have caught up with each other
	return tail == head
}

// IsFull returns true when the queue has no free slots.
func (q *ArrayQueue[T]) IsFull() bool {
	h := q.header()
	tail := h.tail.Load()
	head := h.head.Load()
	return head+h.oneLap == tail
}

func nextPowerOfTwo(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}
