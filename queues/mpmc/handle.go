package mpmc

import (
	"runtime"

	"github.com/Lol3rrr/nolock/hazard"
	"github.com/Lol3rrr/nolock/internal/spin"
	"github.com/Lol3rrr/nolock/queues"
)

// A Handle binds a goroutine to the queue's reclamation protocol: two
// claimed hazard slots (a dequeue protects both the head and its
// successor) and a private retire list.
//
// A Handle is single-user. Keeping one per producer/consumer goroutine
// avoids the pool round-trip of Queue.Enqueue/Dequeue. Call Close when
// done with it, or its registry slots stay claimed.
type Handle[T any] struct {
	queue  *Queue[T]
	hp     *hazard.Handle
	first  *hazard.Guard
	second *hazard.Guard
}

// Handle claims two hazard slots for the calling goroutine and returns
// the bound handle. It fails with hazard.ErrExhausted when the registry
// cannot supply the slots; the caller may retry once other handles
// released theirs.
func (q *Queue[T]) Handle() (*Handle[T], error) {
	hp := q.registry.NewHandle(q.threshold)
	first, err := hp.Acquire()
	if err != nil {
		return nil, err
	}
	second, err := hp.Acquire()
	if err != nil {
		first.Release()
		hp.Close()
		return nil, err
	}
	return &Handle[T]{queue: q, hp: hp, first: first, second: second}, nil
}

// Enqueue appends value to the tail. The only failure is
// queues.ErrAllocation under a configured node limit, reported before any
// shared state changed.
func (h *Handle[T]) Enqueue(value T) error {
	q := h.queue
	n, err := q.newNode(value)
	if err != nil {
		return err
	}

	var bo spin.Backoff
	for {
		tail := hazard.Protect(h.first, &q.tail)
		next := tail.next.Load()
		if next != nil {
			// Another producer linked its node but has not advanced
			// the tail yet; help it forward instead of waiting.
			q.tail.CompareAndSwap(tail, next)
			bo.Wait()
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			// Best effort: a helping producer or consumer may already
			// have advanced the tail past us.
			q.tail.CompareAndSwap(tail, n)
			h.first.Clear()
			if q.waiters.Load() != 0 {
				q.arrivals.Wake()
			}
			return nil
		}
		bo.Wait()
	}
}

// Dequeue removes and returns the value at the head, or queues.ErrEmpty.
// The removed dummy node is retired through the handle's retire list and
// reused only after reclamation proves it unprotected.
func (h *Handle[T]) Dequeue() (T, error) {
	q := h.queue
	var zero T

	var bo spin.Backoff
	for {
		head := hazard.Protect(h.first, &q.head)
		next := hazard.Protect(h.second, &head.next)
		if q.head.Load() != head {
			// head moved between the two protections; next may belong
			// to a node that is already retired.
			bo.Wait()
			continue
		}
		if next == nil {
			h.first.Clear()
			h.second.Clear()
			return zero, queues.ErrEmpty
		}
		if tail := q.tail.Load(); tail == head {
			// A producer linked next but stalled before swinging the
			// tail; advance it so the tail never lags behind the head.
			q.tail.CompareAndSwap(tail, next)
		}
		if q.head.CompareAndSwap(head, next) {
			value := next.value
			// next is the new dummy; its value has been handed out, so
			// drop the reference it pins.
			next.value = zero
			h.first.Clear()
			h.second.Clear()
			hazard.Retire(h.hp, head, q.freeNode)
			return value, nil
		}
		bo.Wait()
	}
}

// Reclaim forces a reclamation pass over the handle's retired nodes.
func (h *Handle[T]) Reclaim() { h.hp.Reclaim() }

// Pending reports how many removed nodes this handle still holds,
// awaiting reclamation.
func (h *Handle[T]) Pending() int { return h.hp.Pending() }

// Close releases the handle's hazard slots and runs a final reclamation
// pass. The handle must not be used afterwards.
func (h *Handle[T]) Close() {
	runtime.SetFinalizer(h, nil)
	h.first.Release()
	h.second.Release()
	h.hp.Close()
}
