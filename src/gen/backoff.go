package gen

import (
	"runtime"
	"sync/atomic"
)

const spinLimit = 6
const yieldLimit = 10

// Backoff performs exponential backoff in spin loops.  It starts out
// spinning the CPU and, once that has gone on long enough, starts
// yielding to the scheduler as well.
type Backoff struct {
	step uint32
}

// Reset puts the backoff back in its initial spinning state.
func (b *Backoff) Reset() {
	b.step = 0
}

// Spin backs off without yielding the processor.  Spin alone never
// advances the step past the spinning range, so IsCompleted never fires
// for a caller that only spins; callers that intend to block when the
// backoff is exhausted must use Snooze.
func (b *Backoff) Spin() {
	n := b.step
	if n > spinLimit {
		n = spinLimit
	}
	procPause(1 << n)
	if b.step <= spinLimit {
		b.step++
	}
}

// Snooze backs off, yielding to the scheduler once spinning has gone on
// long enough.
func (b *Backoff) Snooze() {
	if b.step <= spinLimit {
		procPause(1 << b.step)
	} else {
		runtime.Gosched()
	}
	if b.step <= yieldLimit {
		b.step++
	}
}

// IsCompleted returns true when backing off has gone on long enough that
// the caller should block instead.
func (b *Backoff) IsCompleted() bool {
	return b.step > yieldLimit
}

var pauseSink atomic.Uint32

// procPause burns a few cycles.  Go exposes no pause instruction so this
// spins on work the compiler cannot discard.
//go:noinline
func procPause(rounds uint32) {
	acc := uint32(0)
	for i := uint32(0); i < rounds; i++ {
		acc += i
	}
	pauseSink.Store(acc)
}
