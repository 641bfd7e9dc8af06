// Package epoch implements epoch-based safe memory reclamation, the
// second reclamation scheme of this module. The contract shape is that of
// package hazard: enter before touching shared nodes, retire what you
// unlink, reclamation frees what no reader can still see. The cost is
// amortized differently, though. Readers pin a global epoch instead of
// publishing individual addresses, so protection is per-operation rather
// than per-node. A stalled reader blocks reclamation of everything
// retired since its epoch, which hazard pointers do not; in exchange,
// traversals touch no per-node state.
package epoch

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// ErrExhausted is returned when every reader slot of a Collector is
// claimed. Transient in the same way as hazard.ErrExhausted.
var ErrExhausted = errors.New("epoch: reader slots exhausted")

// DefaultReaders is the reader-slot count used when NewCollector is
// given a non-positive capacity.
const DefaultReaders = 128

// reader is one pinning slot. epoch 0 means the slot's owner is not
// inside a critical section.
type reader struct {
	claimed uint32
	epoch   uint64
	_       cpu.CacheLinePad
}

type retiredNode struct {
	ptr   unsafe.Pointer
	free  func(unsafe.Pointer)
	epoch uint64
}

// A Collector tracks the global epoch, the set of pinned readers and the
// retired nodes awaiting reclamation.
//
// Entering and leaving critical sections is lock-free; retiring takes a
// short mutex on the retire list, which is acceptable because retiring is
// already the slow path of the structures built on top.
type Collector struct {
	global  atomic.Uint64
	readers []reader

	mu      sync.Mutex
	retired []retiredNode
}

// NewCollector creates a Collector with the given number of reader
// slots. A capacity <= 0 selects DefaultReaders.
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = DefaultReaders
	}
	c := &Collector{readers: make([]reader, capacity)}
	c.global.Store(1)
	return c
}

// A Pin marks a goroutine as inside a critical section. Shared nodes
// reached while the pin is held stay alive until Leave.
type Pin struct {
	c *Collector
	r *reader
}

// Enter claims a reader slot and pins the current epoch. Every node
// reachable from the protected structure at this point stays valid until
// the matching Leave.
func (c *Collector) Enter() (*Pin, error) {
	for i := range c.readers {
		r := &c.readers[i]
		if atomic.LoadUint32(&r.claimed) != 0 {
			continue
		}
		if atomic.CompareAndSwapUint32(&r.claimed, 0, 1) {
			atomic.StoreUint64(&r.epoch, c.global.Load())
			return &Pin{c: c, r: r}, nil
		}
	}
	return nil, ErrExhausted
}

// Leave unpins the epoch and frees the reader slot. The Pin must not be
// used afterwards.
func (p *Pin) Leave() {
	atomic.StoreUint64(&p.r.epoch, 0)
	atomic.StoreUint32(&p.r.claimed, 0)
}

// Retire hands ptr to the collector. free runs during some later Collect,
// once every reader that could have seen ptr has left its critical
// section. The caller must already have unlinked ptr from the shared
// structure.
func (c *Collector) Retire(ptr unsafe.Pointer, free func(unsafe.Pointer)) {
	// The node is stamped with the epoch that just ended: readers pinned
	// at that epoch or earlier may still hold it, readers entering from
	// now on pin a later epoch and cannot reach it anymore.
	epoch := c.global.Add(1) - 1
	c.mu.Lock()
	c.retired = append(c.retired, retiredNode{ptr: ptr, free: free, epoch: epoch})
	c.mu.Unlock()
}

// Retire is the typed convenience form of Collector.Retire.
func Retire[T any](c *Collector, ptr *T, free func(*T)) {
	c.Retire(unsafe.Pointer(ptr), func(p unsafe.Pointer) {
		free((*T)(p))
	})
}

// minPinned returns the smallest epoch any reader currently pins, or the
// current global epoch when no reader is pinned.
func (c *Collector) minPinned() uint64 {
	min := c.global.Load()
	for i := range c.readers {
		if e := atomic.LoadUint64(&c.readers[i].epoch); e != 0 && e < min {
			min = e
		}
	}
	return min
}

// Collect frees every retired node whose retirement epoch is older than
// the oldest pinned epoch and reports how many nodes it freed. Like the
// hazard scan it may free nothing; retired nodes survive until the
// readers of their era have left.
func (c *Collector) Collect() int {
	min := c.minPinned()

	c.mu.Lock()
	kept := c.retired[:0]
	freed := 0
	for _, node := range c.retired {
		if node.epoch >= min {
			kept = append(kept, node)
			continue
		}
		node.free(node.ptr)
		freed++
	}
	for i := len(kept); i < len(c.retired); i++ {
		c.retired[i] = retiredNode{}
	}
	c.retired = kept
	c.mu.Unlock()
	return freed
}

// Pending reports how many retired nodes await reclamation.
func (c *Collector) Pending() int {
	c.mu.Lock()
	n := len(c.retired)
	c.mu.Unlock()
	return n
}
