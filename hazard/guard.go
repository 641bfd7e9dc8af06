package hazard

import (
	"sync/atomic"
	"unsafe"
)

// A Guard owns one registry slot and publishes at most one address into it.
// A goroutine may hold several guards at once, one slot each, e.g. to
// protect a node and its successor during a traversal.
//
// A Guard is single-user: it must not be shared between goroutines while
// in use. Release must be the last call on a Guard.
type Guard struct {
	registry *Registry
	slot     *slot
	handle   *Handle
}

// Protect loads the current pointer from src, publishes its address into
// g's slot and re-reads src until the published address is still current.
// The returned pointer is safe to dereference until the guard is cleared,
// released, or Protect is called again.
//
// Protect may return nil if src holds nil; the guard then protects nothing.
func Protect[T any](g *Guard, src *atomic.Pointer[T]) *T {
	ptr := src.Load()
	for {
		g.slot.set(unsafe.Pointer(ptr))

		// The slot write above is sequentially consistent, so any scan
		// that starts after this point sees the protection. If src moved
		// in between, the old target may already be retired: publish the
		// new value and check again.
		again := src.Load()
		if again == ptr {
			return ptr
		}
		ptr = again
	}
}

// Clear empties the protection without giving up the slot, allowing the
// guard to be reused for another Protect.
func (g *Guard) Clear() {
	g.slot.set(nil)
}

// Release clears the protection and returns the slot for reuse. A guard
// acquired from a Handle returns the slot to that handle's cache, one
// acquired from a Registry returns it to the registry. The guard must not
// be used afterwards.
func (g *Guard) Release() {
	if g.handle != nil {
		g.slot.set(nil)
		g.handle.cache = append(g.handle.cache, g.slot)
		return
	}
	g.registry.release(g.slot)
}
