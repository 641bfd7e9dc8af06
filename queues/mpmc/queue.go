// Package mpmc provides multi-producer multi-consumer lock-free queues:
// an unbounded linked queue built on hazard-pointer reclamation and a
// bounded array queue.
package mpmc

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/Lol3rrr/nolock/hazard"
	"github.com/Lol3rrr/nolock/internal/notify"
	"github.com/Lol3rrr/nolock/internal/spin"
	"github.com/Lol3rrr/nolock/queues"
)

type node[T any] struct {
	next  atomic.Pointer[node[T]]
	value T
}

// Queue is an unbounded lock-free MPMC queue: an intrusive singly linked
// list with a perpetual dummy head, Michael-Scott style. Every dereference
// of a shared node goes through a hazard guard and removed nodes are
// recycled through the reclamation protocol, so a slow consumer can never
// observe a node that was reused under it.
//
// All methods are safe for concurrent use. For hot paths, obtain a
// per-goroutine Handle instead of calling Enqueue/Dequeue directly.
type Queue[T any] struct {
	head atomic.Pointer[node[T]]
	_    cpu.CacheLinePad
	tail atomic.Pointer[node[T]]
	_    cpu.CacheLinePad

	registry  *hazard.Registry
	threshold int
	limit     int64
	live      atomic.Int64

	// Parking for DequeueContext. Any number of consumers may wait, so
	// arrivals is a broadcast; waiters gates the wakeup to one atomic
	// load on the enqueue path.
	waiters  atomic.Int32
	arrivals *notify.Broadcast

	nodes   sync.Pool
	handles sync.Pool
}

// Option configures a Queue at construction time.
type Option func(*config)

type config struct {
	threshold int
	nodeLimit int64
}

// WithThreshold sets the reclamation batching threshold used by the
// queue's hazard handles: a handle scans the registry after every k
// retirements. k <= 0 selects hazard.DefaultThreshold.
func WithThreshold(k int) Option {
	return func(c *config) { c.threshold = k }
}

// WithNodeLimit bounds the number of live nodes, counting the dummy head
// and nodes retired but not yet reclaimed. With a limit of n the queue
// accepts at most n-1 elements before Enqueue starts reporting
// queues.ErrAllocation. A limit of 0 (the default) means unbounded.
func WithNodeLimit(n int) Option {
	return func(c *config) { c.nodeLimit = int64(n) }
}

// New creates an empty Queue whose hazard slots live in registry. A nil
// registry allocates a private one with hazard.DefaultCapacity; sharing a
// registry across queues keeps the slot table count down at the price of
// broader reclamation scans.
func New[T any](registry *hazard.Registry, opts ...Option) *Queue[T] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if registry == nil {
		registry = hazard.NewRegistry(0)
	}

	q := &Queue[T]{
		registry:  registry,
		threshold: cfg.threshold,
		limit:     cfg.nodeLimit,
		arrivals:  notify.NewBroadcast(),
	}
	q.nodes.New = func() any { return new(node[T]) }

	dummy := new(node[T])
	if q.limit > 0 {
		q.live.Store(1)
	}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

func (q *Queue[T]) newNode(value T) (*node[T], error) {
	if q.limit > 0 && q.live.Add(1) > q.limit {
		q.live.Add(-1)
		return nil, queues.ErrAllocation
	}
	n := q.nodes.Get().(*node[T])
	n.value = value
	return n, nil
}

// freeNode is the retire target: it runs once the reclamation scan proves
// no guard holds the node, and returns the node to the pool for reuse.
func (q *Queue[T]) freeNode(n *node[T]) {
	var zero T
	n.value = zero
	n.next.Store(nil)
	if q.limit > 0 {
		q.live.Add(-1)
	}
	q.nodes.Put(n)
}

// Enqueue appends value to the tail of the queue. It fails only with
// queues.ErrAllocation, and only when a node limit is configured; the
// queue is unchanged in that case.
func (q *Queue[T]) Enqueue(value T) error {
	h := q.borrow()
	err := h.Enqueue(value)
	q.handles.Put(h)
	return err
}

// Dequeue removes and returns the value at the head of the queue, or
// queues.ErrEmpty when there is none.
func (q *Queue[T]) Dequeue() (T, error) {
	h := q.borrow()
	v, err := h.Dequeue()
	q.handles.Put(h)
	return v, err
}

// DequeueContext removes and returns the value at the head of the
// queue, parking until a producer enqueues one when the queue is empty.
// It fails only with ctx.Err.
func (q *Queue[T]) DequeueContext(ctx context.Context) (T, error) {
	for {
		// Register before looking: an enqueue that lands after the look
		// sees the waiter count and wakes the generation grabbed here.
		q.waiters.Add(1)
		wait := q.arrivals.C()
		v, err := q.Dequeue()
		if err != queues.ErrEmpty {
			q.waiters.Add(-1)
			return v, err
		}
		select {
		case <-wait:
		case <-ctx.Done():
			q.waiters.Add(-1)
			var zero T
			return zero, ctx.Err()
		}
		q.waiters.Add(-1)
	}
}

// borrow gets a pooled per-goroutine handle. Registry exhaustion is
// transient here (slots are held by other in-flight handles), so creation
// retries with backoff until a handle or a slot frees up.
func (q *Queue[T]) borrow() *Handle[T] {
	if v := q.handles.Get(); v != nil {
		return v.(*Handle[T])
	}
	var bo spin.Backoff
	for {
		h, err := q.Handle()
		if err == nil {
			// The pool may drop the handle at any GC; the finalizer
			// gives its registry slots back instead of leaking them.
			runtime.SetFinalizer(h, (*Handle[T]).Close)
			return h
		}
		bo.Wait()
		if v := q.handles.Get(); v != nil {
			return v.(*Handle[T])
		}
	}
}
