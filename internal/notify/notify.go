// Package notify provides the wakeup primitives behind the blocking
// queue operations. A queue side that finds nothing to do parks on one
// of these instead of spinning; the opposite side triggers it after a
// successful operation.
package notify

import (
	"context"
	"sync"
)

// A Signal is a single-waiter wakeup: at most one goroutine waits on it
// at a time, any number may trigger it. It latches one pending wakeup,
// so a Wake that races ahead of the Wait is not lost.
//
// Spurious wakeups are possible; the waiter rechecks its condition and
// parks again.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an untriggered Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Wake latches a wakeup. It never blocks; if one is already pending it
// does nothing.
func (s *Signal) Wake() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait parks until the Signal is woken or ctx is done, returning
// ctx.Err in the latter case.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// A Broadcast wakes every currently parked goroutine at once, for queues
// with more than one potential waiter. Waiters grab the current
// generation with C before rechecking their condition; Wake closes that
// generation and starts the next one, so a wakeup that arrives between
// the recheck and the park still lands.
type Broadcast struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewBroadcast creates a Broadcast with an open first generation.
func NewBroadcast() *Broadcast {
	return &Broadcast{ch: make(chan struct{})}
}

// Wake releases every waiter parked on the current generation.
func (b *Broadcast) Wake() {
	b.mu.Lock()
	close(b.ch)
	b.ch = make(chan struct{})
	b.mu.Unlock()
}

// C returns the current generation. Call it before rechecking the
// condition that decides whether to park.
func (b *Broadcast) C() <-chan struct{} {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	return ch
}
