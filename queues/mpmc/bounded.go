package mpmc

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/Lol3rrr/nolock/queues"
)

// Bounded is a fixed-capacity MPMC queue over a sequence-numbered ring,
// after Vyukov. It allocates nothing after construction and needs no
// reclamation machinery: slots are reused in place, with the per-cell
// sequence number deciding who may touch a cell next.
type Bounded[T any] struct {
	_     cpu.CacheLinePad
	enq   atomic.Uint64
	_     cpu.CacheLinePad
	deq   atomic.Uint64
	_     cpu.CacheLinePad
	mask  uint64
	cells []cell[T]
}

type cell[T any] struct {
	seq   atomic.Uint64
	value T
}

// NewBounded creates a Bounded queue holding at least capacity elements;
// the actual capacity is rounded up to a power of two and never less
// than 2.
func NewBounded[T any](capacity int) *Bounded[T] {
	size := 2
	for size < capacity {
		size <<= 1
	}

	b := &Bounded[T]{
		mask:  uint64(size - 1),
		cells: make([]cell[T], size),
	}
	for i := range b.cells {
		b.cells[i].seq.Store(uint64(i))
	}
	return b
}

// Cap returns the rounded-up capacity.
func (b *Bounded[T]) Cap() int { return len(b.cells) }

// Enqueue places value into the next free cell, or reports
// queues.ErrFull without modifying the queue.
func (b *Bounded[T]) Enqueue(value T) error {
	for {
		pos := b.enq.Load()
		c := &b.cells[pos&b.mask]
		seq := c.seq.Load()

		switch diff := int64(seq) - int64(pos); {
		case diff == 0:
			if b.enq.CompareAndSwap(pos, pos+1) {
				c.value = value
				c.seq.Store(pos + 1)
				return nil
			}
		case diff < 0:
			// The cell still holds an element from a full lap ago.
			return queues.ErrFull
		}
		// diff > 0: another producer claimed this cell, retry on the
		// advanced position.
	}
}

// Dequeue removes and returns the oldest element, or queues.ErrEmpty.
func (b *Bounded[T]) Dequeue() (T, error) {
	var zero T
	for {
		pos := b.deq.Load()
		c := &b.cells[pos&b.mask]
		seq := c.seq.Load()

		switch diff := int64(seq) - int64(pos+1); {
		case diff == 0:
			if b.deq.CompareAndSwap(pos, pos+1) {
				value := c.value
				c.value = zero
				c.seq.Store(pos + b.mask + 1)
				return value, nil
			}
		case diff < 0:
			return zero, queues.ErrEmpty
		}
	}
}
