// Package queues holds the outcome values shared by every queue variant in
// this module.
//
// Queue operations never block and never panic on a full, empty or closed
// queue; they return one of the sentinel errors below instead. Compare with
// errors.Is.
package queues

import "errors"

var (
	// ErrEmpty reports a dequeue on a queue that currently holds no
	// element. Not a failure, just a defined outcome.
	ErrEmpty = errors.New("queues: empty")

	// ErrFull reports an enqueue on a bounded queue whose capacity is
	// currently used up.
	ErrFull = errors.New("queues: full")

	// ErrClosed reports an operation on a queue whose other side has
	// been closed. A closed queue still hands out its remaining
	// elements before dequeues start returning ErrClosed.
	ErrClosed = errors.New("queues: closed")

	// ErrAllocation reports an enqueue that could not allocate a node
	// because the queue's configured node budget is exhausted. The
	// queue is left unchanged.
	ErrAllocation = errors.New("queues: node budget exhausted")
)
