package hazard

import (
	"errors"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// ErrExhausted is returned when every slot of a Registry is claimed.
// The condition is transient: a slot becomes free again as soon as some
// guard releases it, so callers may retry, back off, or construct the
// Registry with a larger capacity.
var ErrExhausted = errors.New("hazard: registry slots exhausted")

// DefaultCapacity is the slot count used when NewRegistry is given a
// non-positive capacity. Sized for a couple of guards per runnable
// goroutine at typical GOMAXPROCS scale.
const DefaultCapacity = 128

// slot is a single hazard cell. claimed is owned by whichever goroutine
// won the CAS from 0 to 1; protect is written only by that claimant and
// read by any goroutine running a reclamation scan.
type slot struct {
	claimed uint32
	protect unsafe.Pointer
	_       cpu.CacheLinePad
}

func (s *slot) set(addr unsafe.Pointer) {
	atomic.StorePointer(&s.protect, addr)
}

// Registry is a fixed-capacity table of hazard slots shared by every
// goroutine operating on the structures it protects.
//
// All methods are safe for concurrent use.
type Registry struct {
	slots []slot
}

// NewRegistry creates a Registry with the given slot capacity.
// A capacity <= 0 selects DefaultCapacity. The capacity is fixed for the
// lifetime of the Registry.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{slots: make([]slot, capacity)}
}

// Capacity returns the fixed slot count.
func (r *Registry) Capacity() int { return len(r.slots) }

// acquire claims the first free slot with a single CAS per candidate.
// Lock-free: a failed CAS means another goroutine claimed the slot and
// the scan moves on.
func (r *Registry) acquire() (*slot, error) {
	for i := range r.slots {
		s := &r.slots[i]
		if atomic.LoadUint32(&s.claimed) != 0 {
			continue
		}
		if atomic.CompareAndSwapUint32(&s.claimed, 0, 1) {
			return s, nil
		}
	}
	return nil, ErrExhausted
}

// release empties the slot's protection before marking it free, so a
// concurrent scan can never observe a stale address in a free slot.
func (r *Registry) release(s *slot) {
	s.set(nil)
	atomic.StoreUint32(&s.claimed, 0)
}

// forEachProtected calls fn for every non-empty protection address, one
// pass over the table. Individual slot reads may race with publication;
// the protocol tolerates a spurious "still protected" but a slot is always
// written before the corresponding dereference, so an in-progress access
// is never missed.
func (r *Registry) forEachProtected(fn func(unsafe.Pointer)) {
	for i := range r.slots {
		if p := atomic.LoadPointer(&r.slots[i].protect); p != nil {
			fn(p)
		}
	}
}

// Acquire claims a free slot and wraps it into an empty Guard. The Guard
// protects nothing until Protect is called on it.
func (r *Registry) Acquire() (*Guard, error) {
	s, err := r.acquire()
	if err != nil {
		return nil, err
	}
	return &Guard{registry: r, slot: s}, nil
}
