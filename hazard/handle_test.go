package hazard

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetireReclaimsUnprotected(t *testing.T) {
	r := NewRegistry(4)
	h := r.NewHandle(0)

	node := new(int)
	var freed int
	Retire(h, node, func(p *int) {
		assert.Same(t, node, p)
		freed++
	})

	require.Equal(t, 1, h.Pending())
	h.Reclaim()
	assert.Equal(t, 1, freed)
	assert.Equal(t, 0, h.Pending())
}

func TestRetireKeepsProtected(t *testing.T) {
	r := NewRegistry(4)
	h := r.NewHandle(0)

	node := new(int)
	*node = 15
	var src atomic.Pointer[int]
	src.Store(node)

	g, err := h.Acquire()
	require.NoError(t, err)
	got := Protect(g, &src)
	require.Same(t, node, got)

	// The node is unlinked and retired while the guard still holds it.
	src.Store(nil)
	var freed int
	Retire(h, node, func(*int) { freed++ })

	h.Reclaim()
	assert.Equal(t, 0, freed, "freed while protected")
	assert.Equal(t, 15, *got)
	require.Equal(t, 1, h.Pending())

	// Releasing the guard makes the node reclaimable; freeing happens on
	// the next pass, exactly once.
	g.Release()
	h.Reclaim()
	assert.Equal(t, 1, freed)

	h.Reclaim()
	assert.Equal(t, 1, freed, "double free")
	h.Close()
}

func TestRetireThresholdTriggersScan(t *testing.T) {
	r := NewRegistry(4)
	h := r.NewHandle(4)

	var freed int
	for i := 0; i < 3; i++ {
		Retire(h, new(int), func(*int) { freed++ })
	}
	assert.Equal(t, 0, freed, "scan ran before the threshold")
	require.Equal(t, 3, h.Pending())

	Retire(h, new(int), func(*int) { freed++ })
	assert.Equal(t, 4, freed)
	assert.Equal(t, 0, h.Pending())
}

// A perpetually protected node stays on the retire list across passes
// rather than being freed or lost; the accepted bounded leak.
func TestPerpetualProtectionKeepsNode(t *testing.T) {
	r := NewRegistry(4)
	h := r.NewHandle(0)

	node := new(int)
	var src atomic.Pointer[int]
	src.Store(node)

	g, err := h.Acquire()
	require.NoError(t, err)
	Protect(g, &src)

	var freed int
	Retire(h, node, func(*int) { freed++ })

	for i := 0; i < 10; i++ {
		h.Reclaim()
	}
	assert.Equal(t, 0, freed)
	assert.Equal(t, 1, h.Pending())

	g.Release()
}

func TestCloseReleasesSlots(t *testing.T) {
	r := NewRegistry(2)
	h := r.NewHandle(0)

	g1, err := h.Acquire()
	require.NoError(t, err)
	g2, err := h.Acquire()
	require.NoError(t, err)
	g1.Release()
	g2.Release()

	var freed int
	Retire(h, new(int), func(*int) { freed++ })
	h.Close()
	assert.Equal(t, 1, freed)

	// Both slots are free again for other users.
	g1, err = r.Acquire()
	require.NoError(t, err)
	g2, err = r.Acquire()
	require.NoError(t, err)
	g1.Release()
	g2.Release()
}
