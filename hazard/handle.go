package hazard

import "unsafe"

// DefaultThreshold is the retire-list length that triggers an automatic
// reclamation pass. A tuning constant, not a semantic one: larger values
// trade memory growth for fewer registry scans.
const DefaultThreshold = 16

// retiredNode is an unlinked node together with the function responsible
// for freeing it. The retire list owns the node exclusively until the free
// function has run, which makes a double free structurally impossible.
type retiredNode struct {
	ptr  unsafe.Pointer
	free func(unsafe.Pointer)
}

// A Handle bundles the per-goroutine state of the reclamation protocol: a
// cache of claimed slots for cheap guard reuse and the private retire list.
//
// A Handle is single-user. It may be passed between goroutines, through a
// sync.Pool for example, but must never be used by two goroutines at the
// same time. No goroutine ever reads another handle's retire list.
type Handle struct {
	registry  *Registry
	threshold int
	cache     []*slot
	retired   []retiredNode
}

// NewHandle creates a Handle whose automatic reclamation triggers after
// threshold retirements. A threshold <= 0 selects DefaultThreshold.
func (r *Registry) NewHandle(threshold int) *Handle {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Handle{registry: r, threshold: threshold}
}

// Acquire returns an empty Guard, reusing a cached slot when one is
// available and claiming a new registry slot otherwise.
func (h *Handle) Acquire() (*Guard, error) {
	if n := len(h.cache); n > 0 {
		s := h.cache[n-1]
		h.cache = h.cache[:n-1]
		return &Guard{registry: h.registry, slot: s, handle: h}, nil
	}
	s, err := h.registry.acquire()
	if err != nil {
		return nil, err
	}
	return &Guard{registry: h.registry, slot: s, handle: h}, nil
}

// Retire takes ownership of ptr, which the caller must already have
// unlinked from every shared structure. free runs exactly once, at some
// later point when no slot in the registry holds ptr.
//
// Every threshold-th retirement runs a reclamation pass.
func (h *Handle) Retire(ptr unsafe.Pointer, free func(unsafe.Pointer)) {
	h.retired = append(h.retired, retiredNode{ptr: ptr, free: free})
	if len(h.retired) >= h.threshold {
		h.scan()
	}
}

// Retire is the typed convenience form of Handle.Retire.
func Retire[T any](h *Handle, ptr *T, free func(*T)) {
	h.Retire(unsafe.Pointer(ptr), func(p unsafe.Pointer) {
		free((*T)(p))
	})
}

// Reclaim forces a reclamation pass. It frees every retired node whose
// address no slot currently holds and keeps the rest for a later pass.
func (h *Handle) Reclaim() {
	h.scan()
}

// Pending reports how many retired nodes await reclamation.
func (h *Handle) Pending() int { return len(h.retired) }

// scan is the two-phase hazard-pointer reclamation: snapshot every
// protected address, then partition the retire list by membership.
//
// Any goroutine intending to dereference a retired node published its
// address before h observed the node as unlinked, so the snapshot, taken
// afterwards, cannot miss an in-progress access.
func (h *Handle) scan() {
	protected := make(map[unsafe.Pointer]struct{}, len(h.registry.slots))
	h.registry.forEachProtected(func(p unsafe.Pointer) {
		protected[p] = struct{}{}
	})

	kept := h.retired[:0]
	for _, node := range h.retired {
		if _, ok := protected[node.ptr]; ok {
			kept = append(kept, node)
			continue
		}
		node.free(node.ptr)
	}
	// Drop the freed entries' references so the tail does not pin them.
	for i := len(kept); i < len(h.retired); i++ {
		h.retired[i] = retiredNode{}
	}
	h.retired = kept
}

// Close runs a final reclamation pass and returns every cached slot to the
// registry. Nodes that are still protected at this point stay on the
// retire list and are left to the garbage collector.
func (h *Handle) Close() {
	h.scan()
	for _, s := range h.cache {
		h.registry.release(s)
	}
	h.cache = nil
}
