// Package spsc provides single-producer single-consumer queues: a bounded
// ring and an unbounded linked queue with node recycling.
//
// Each queue is split into a Sender and a Receiver half; the producer
// goroutine owns the Sender, the consumer goroutine owns the Receiver, and
// neither half tolerates concurrent use. Closing either half closes the
// queue: the other side drains what is left and then sees
// queues.ErrClosed.
//
// Try operations never block. The Context variants park the calling
// goroutine until the operation can proceed, the queue closes or the
// context ends.
package spsc

import (
	"context"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/Lol3rrr/nolock/internal/notify"
	"github.com/Lol3rrr/nolock/queues"
)

// ring is the shared state of a bounded queue. head is written only by
// the producer, tail only by the consumer; each side reads the other's
// index atomically, which is the whole synchronization protocol.
//
// The wait flags and signals serve the blocking Context variants: a side
// parks only after raising its flag, the other side triggers the signal
// only when the flag is up, so the Try fast paths pay one atomic load.
type ring[T any] struct {
	head uint64
	_    cpu.CacheLinePad
	tail uint64
	_    cpu.CacheLinePad

	closed uint32
	mask   uint64
	buf    []T

	rxWait   uint32
	txWait   uint32
	notEmpty *notify.Signal
	notFull  *notify.Signal
}

// Sender is the producer half of a bounded queue.
type Sender[T any] struct {
	r *ring[T]
}

// Receiver is the consumer half of a bounded queue.
type Receiver[T any] struct {
	r *ring[T]
}

// Bounded creates a queue holding at least capacity elements (rounded up
// to a power of two, minimum 2) and returns its two halves.
func Bounded[T any](capacity int) (*Receiver[T], *Sender[T]) {
	size := 2
	for size < capacity {
		size <<= 1
	}
	r := &ring[T]{
		mask:     uint64(size - 1),
		buf:      make([]T, size),
		notEmpty: notify.NewSignal(),
		notFull:  notify.NewSignal(),
	}
	return &Receiver[T]{r: r}, &Sender[T]{r: r}
}

func (r *ring[T]) close() {
	atomic.StoreUint32(&r.closed, 1)
	// Whoever is parked has to observe the closed flag.
	r.notEmpty.Wake()
	r.notFull.Wake()
}

func (r *ring[T]) isClosed() bool {
	return atomic.LoadUint32(&r.closed) != 0
}

// TryEnqueue places value into the ring. It reports queues.ErrFull when
// the consumer has not caught up and queues.ErrClosed once the receiver
// closed the queue.
func (s *Sender[T]) TryEnqueue(value T) error {
	r := s.r
	if r.isClosed() {
		return queues.ErrClosed
	}
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if head-tail == uint64(len(r.buf)) {
		return queues.ErrFull
	}
	r.buf[head&r.mask] = value
	atomic.StoreUint64(&r.head, head+1)
	if atomic.LoadUint32(&r.rxWait) != 0 {
		r.notEmpty.Wake()
	}
	return nil
}

// EnqueueContext places value into the ring, parking until the consumer
// makes room when the ring is full. It fails with queues.ErrClosed once
// the receiver closed the queue and with ctx.Err when ctx ends first.
func (s *Sender[T]) EnqueueContext(ctx context.Context, value T) error {
	r := s.r
	for {
		err := s.TryEnqueue(value)
		if err != queues.ErrFull {
			return err
		}
		atomic.StoreUint32(&r.txWait, 1)
		err = s.TryEnqueue(value)
		if err != queues.ErrFull {
			atomic.StoreUint32(&r.txWait, 0)
			return err
		}
		err = r.notFull.Wait(ctx)
		atomic.StoreUint32(&r.txWait, 0)
		if err != nil {
			return err
		}
	}
}

// Close marks the queue closed. Elements already enqueued stay available
// to the receiver.
func (s *Sender[T]) Close() { s.r.close() }

// Closed reports whether the other half closed the queue.
func (s *Sender[T]) Closed() bool { return s.r.isClosed() }

// Cap returns the ring capacity.
func (s *Sender[T]) Cap() int { return len(s.r.buf) }

// TryDequeue removes the oldest element. An empty ring reports
// queues.ErrEmpty while the queue is open and queues.ErrClosed after the
// sender closed it and everything has been drained.
func (c *Receiver[T]) TryDequeue() (T, error) {
	var zero T
	r := c.r
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	if tail == head {
		if !r.isClosed() {
			return zero, queues.ErrEmpty
		}
		// The producer may have enqueued between the head read and the
		// closed read. Reread the head before declaring the queue drained,
		// or that element would be lost.
		head = atomic.LoadUint64(&r.head)
		if tail == head {
			return zero, queues.ErrClosed
		}
	}
	value := r.buf[tail&r.mask]
	r.buf[tail&r.mask] = zero
	atomic.StoreUint64(&r.tail, tail+1)
	if atomic.LoadUint32(&r.txWait) != 0 {
		r.notFull.Wake()
	}
	return value, nil
}

// DequeueContext removes the oldest element, parking until the producer
// enqueues one when the ring is empty. It fails with queues.ErrClosed
// once the queue is closed and drained and with ctx.Err when ctx ends
// first.
func (c *Receiver[T]) DequeueContext(ctx context.Context) (T, error) {
	r := c.r
	for {
		v, err := c.TryDequeue()
		if err != queues.ErrEmpty {
			return v, err
		}
		// Raise the flag, then look again: an element enqueued after the
		// first look but before the flag was visible would otherwise
		// never trigger the signal.
		atomic.StoreUint32(&r.rxWait, 1)
		v, err = c.TryDequeue()
		if err != queues.ErrEmpty {
			atomic.StoreUint32(&r.rxWait, 0)
			return v, err
		}
		err = r.notEmpty.Wait(ctx)
		atomic.StoreUint32(&r.rxWait, 0)
		if err != nil {
			var zero T
			return zero, err
		}
	}
}

// Close marks the queue closed, telling the producer to stop.
func (c *Receiver[T]) Close() { c.r.close() }

// Closed reports whether the other half closed the queue.
func (c *Receiver[T]) Closed() bool { return c.r.isClosed() }

// Cap returns the ring capacity.
func (c *Receiver[T]) Cap() int { return len(c.r.buf) }
