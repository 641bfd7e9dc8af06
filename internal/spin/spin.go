// Package spin provides the shared backoff used by compare-and-swap retry
// loops. A looser scheduler than native threads means a failed CAS should
// eventually yield the processor instead of burning it.
package spin

import "runtime"

const busyspin = 8

// Backoff busy-spins for the first few failures and yields afterwards.
// The zero value is ready to use.
type Backoff struct {
	count int
}

// Wait records a failed attempt and backs off accordingly.
func (b *Backoff) Wait() {
	b.count++
	if b.count > busyspin {
		runtime.Gosched()
	}
}

// Reset forgets previous failures, returning to busy-spinning.
func (b *Backoff) Reset() {
	b.count = 0
}
