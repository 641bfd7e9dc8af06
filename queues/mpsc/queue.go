// Package mpsc provides an unbounded multi-producer single-consumer
// queue: an intrusive linked list where producers swap themselves in at
// the tail and the single consumer walks the list from a dummy head.
package mpsc

import (
	"context"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/Lol3rrr/nolock/internal/notify"
	"github.com/Lol3rrr/nolock/queues"
)

type node[T any] struct {
	next  atomic.Pointer[node[T]]
	value T
}

// Queue is an unbounded MPSC queue. Any number of goroutines may call
// Enqueue; exactly one goroutine owns Dequeue.
//
// Producers are wait-free: an enqueue is one atomic swap plus one store.
// The price is a tiny window between the two in which the swapped-in node
// is not linked yet; a concurrent Dequeue then reports queues.ErrEmpty
// even though the enqueue will complete. Consumers polling with a backoff
// absorb this.
type Queue[T any] struct {
	head *node[T]
	_    cpu.CacheLinePad
	tail atomic.Pointer[node[T]]
	_    cpu.CacheLinePad

	closed atomic.Bool

	rxWait   atomic.Uint32
	notEmpty *notify.Signal
}

// New creates an empty Queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{notEmpty: notify.NewSignal()}
	dummy := &node[T]{}
	q.head = dummy
	q.tail.Store(dummy)
	return q
}

// Enqueue appends value. It fails only with queues.ErrClosed.
func (q *Queue[T]) Enqueue(value T) error {
	if q.closed.Load() {
		return queues.ErrClosed
	}
	n := &node[T]{value: value}
	prev := q.tail.Swap(n)
	prev.next.Store(n)
	if q.rxWait.Load() != 0 {
		q.notEmpty.Wake()
	}
	return nil
}

// Dequeue removes the oldest element. Only the consumer goroutine may
// call it. An empty queue reports queues.ErrEmpty while open and
// queues.ErrClosed once closed and drained.
func (q *Queue[T]) Dequeue() (T, error) {
	var zero T
	next := q.head.next.Load()
	if next == nil {
		if q.closed.Load() && q.tail.Load() == q.head {
			return zero, queues.ErrClosed
		}
		return zero, queues.ErrEmpty
	}
	value := next.value
	next.value = zero
	q.head = next
	return value, nil
}

// DequeueContext removes the oldest element, parking until a producer
// links one when the queue is empty. Only the consumer goroutine may
// call it. It fails with queues.ErrClosed once the queue is closed and
// drained and with ctx.Err when ctx ends first.
func (q *Queue[T]) DequeueContext(ctx context.Context) (T, error) {
	for {
		v, err := q.Dequeue()
		if err != queues.ErrEmpty {
			return v, err
		}
		// Raise the flag, then look again, so an element linked in
		// between still triggers the signal.
		q.rxWait.Store(1)
		v, err = q.Dequeue()
		if err != queues.ErrEmpty {
			q.rxWait.Store(0)
			return v, err
		}
		err = q.notEmpty.Wait(ctx)
		q.rxWait.Store(0)
		if err != nil {
			var zero T
			return zero, err
		}
	}
}

// Close stops further enqueues. Elements already linked stay available.
func (q *Queue[T]) Close() {
	q.closed.Store(true)
	q.notEmpty.Wake()
}

// Closed reports whether the queue is closed.
func (q *Queue[T]) Closed() bool { return q.closed.Load() }
