package spsc

import (
	"context"
	"sync/atomic"

	"github.com/Lol3rrr/nolock/internal/notify"
	"github.com/Lol3rrr/nolock/queues"
)

// recycleDepth is the capacity of the free-node ring running backwards
// from consumer to producer. When it overflows, spent nodes fall back to
// the garbage collector.
const recycleDepth = 64

type unode[T any] struct {
	next  atomic.Pointer[unode[T]]
	value T
}

type unbounded[T any] struct {
	closed atomic.Bool

	rxWait   uint32
	notEmpty *notify.Signal
}

// UnboundedSender is the producer half of an unbounded queue. It owns the
// list tail and allocates nodes, preferring ones the consumer recycled.
type UnboundedSender[T any] struct {
	shared *unbounded[T]
	tail   *unode[T]
	free   *Receiver[*unode[T]]
}

// UnboundedReceiver is the consumer half. It owns the dummy head and
// hands spent nodes back through the recycle ring.
type UnboundedReceiver[T any] struct {
	shared *unbounded[T]
	head   *unode[T]
	free   *Sender[*unode[T]]
}

// Unbounded creates an unbounded linked queue and returns its two halves.
// Enqueue never reports full; memory is bounded by the number of elements
// in flight plus the recycle ring.
func Unbounded[T any]() (*UnboundedReceiver[T], *UnboundedSender[T]) {
	shared := &unbounded[T]{notEmpty: notify.NewSignal()}
	dummy := &unode[T]{}
	freeRx, freeTx := Bounded[*unode[T]](recycleDepth)

	rx := &UnboundedReceiver[T]{shared: shared, head: dummy, free: freeTx}
	tx := &UnboundedSender[T]{shared: shared, tail: dummy, free: freeRx}
	return rx, tx
}

// Enqueue appends value. It fails only with queues.ErrClosed.
func (s *UnboundedSender[T]) Enqueue(value T) error {
	if s.shared.closed.Load() {
		return queues.ErrClosed
	}

	var n *unode[T]
	if recycled, err := s.free.TryDequeue(); err == nil {
		n = recycled
	} else {
		n = &unode[T]{}
	}
	n.value = value

	s.tail.next.Store(n)
	s.tail = n
	if atomic.LoadUint32(&s.shared.rxWait) != 0 {
		s.shared.notEmpty.Wake()
	}
	return nil
}

// Close marks the queue closed. The receiver still drains what is linked.
func (s *UnboundedSender[T]) Close() {
	s.shared.closed.Store(true)
	s.shared.notEmpty.Wake()
}

// Closed reports whether the other half closed the queue.
func (s *UnboundedSender[T]) Closed() bool { return s.shared.closed.Load() }

// TryDequeue removes the oldest element, queues.ErrEmpty when none is
// linked yet and queues.ErrClosed once the queue is closed and drained.
func (c *UnboundedReceiver[T]) TryDequeue() (T, error) {
	var zero T
	next := c.head.next.Load()
	if next == nil {
		if !c.shared.closed.Load() {
			return zero, queues.ErrEmpty
		}
		// The producer may have linked a node between the next read and
		// the closed read. Reread before declaring the queue drained, or
		// that element would be lost.
		next = c.head.next.Load()
		if next == nil {
			return zero, queues.ErrClosed
		}
	}

	value := next.value
	next.value = zero

	// The old dummy is ours alone now: the producer's tail sits at next
	// or later. Reset it and send it back for reuse.
	spent := c.head
	c.head = next
	spent.next.Store(nil)
	_ = c.free.TryEnqueue(spent)

	return value, nil
}

// DequeueContext removes the oldest element, parking until the producer
// links one when the queue is empty. It fails with queues.ErrClosed once
// the queue is closed and drained and with ctx.Err when ctx ends first.
func (c *UnboundedReceiver[T]) DequeueContext(ctx context.Context) (T, error) {
	shared := c.shared
	for {
		v, err := c.TryDequeue()
		if err != queues.ErrEmpty {
			return v, err
		}
		// Raise the flag, then look again, so an element linked in
		// between still triggers the signal.
		atomic.StoreUint32(&shared.rxWait, 1)
		v, err = c.TryDequeue()
		if err != queues.ErrEmpty {
			atomic.StoreUint32(&shared.rxWait, 0)
			return v, err
		}
		err = shared.notEmpty.Wait(ctx)
		atomic.StoreUint32(&shared.rxWait, 0)
		if err != nil {
			var zero T
			return zero, err
		}
	}
}

// Close marks the queue closed, telling the producer to stop.
func (c *UnboundedReceiver[T]) Close() { c.shared.closed.Store(true) }

// Closed reports whether the other half closed the queue.
func (c *UnboundedReceiver[T]) Closed() bool { return c.shared.closed.Load() }
