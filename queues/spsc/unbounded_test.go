package spsc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Lol3rrr/nolock/internal/spin"
	"github.com/Lol3rrr/nolock/queues"
	"github.com/Lol3rrr/nolock/queues/spsc"
)

func TestUnboundedBasic(t *testing.T) {
	rx, tx := spsc.Unbounded[int]()

	_, err := rx.TryDequeue()
	assert.ErrorIs(t, err, queues.ErrEmpty)

	require.NoError(t, tx.Enqueue(13))
	require.NoError(t, tx.Enqueue(14))

	v, err := rx.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, 13, v)

	v, err = rx.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, 14, v)

	_, err = rx.TryDequeue()
	assert.ErrorIs(t, err, queues.ErrEmpty)
}

func TestUnboundedNeverFull(t *testing.T) {
	rx, tx := spsc.Unbounded[int]()

	// Far beyond the recycle ring's depth: nodes fall back to fresh
	// allocations and order still holds.
	const N = 1000
	for i := 0; i < N; i++ {
		require.NoError(t, tx.Enqueue(i))
	}
	for i := 0; i < N; i++ {
		v, err := rx.TryDequeue()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
}

func TestUnboundedClose(t *testing.T) {
	rx, tx := spsc.Unbounded[int]()

	require.NoError(t, tx.Enqueue(1))
	tx.Close()
	assert.True(t, rx.Closed())
	assert.ErrorIs(t, tx.Enqueue(2), queues.ErrClosed)

	v, err := rx.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = rx.TryDequeue()
	assert.ErrorIs(t, err, queues.ErrClosed)
}

// Same drain guarantee as the bounded ring: an element linked right
// before the close must reach the consumer, never ErrClosed.
func TestUnboundedCloseDrainsRacingEnqueue(t *testing.T) {
	const rounds = 10000

	for round := 0; round < rounds; round++ {
		rx, tx := spsc.Unbounded[int]()

		var group errgroup.Group
		group.Go(func() error {
			if err := tx.Enqueue(1); err != nil {
				return err
			}
			tx.Close()
			return nil
		})

		var bo spin.Backoff
		for {
			v, err := rx.TryDequeue()
			if err == nil {
				require.Equal(t, 1, v)
				break
			}
			require.ErrorIs(t, err, queues.ErrEmpty,
				"round %d: closed before draining the element", round)
			bo.Wait()
		}
		require.NoError(t, group.Wait())
	}
}

func TestUnboundedContext(t *testing.T) {
	t.Run("dequeue waits for enqueue", func(t *testing.T) {
		rx, tx := spsc.Unbounded[int]()

		var got int
		var group errgroup.Group
		group.Go(func() error {
			v, err := rx.DequeueContext(context.Background())
			got = v
			return err
		})

		require.NoError(t, tx.Enqueue(42))
		require.NoError(t, group.Wait())
		assert.Equal(t, 42, got)
	})

	t.Run("cancel unblocks dequeue", func(t *testing.T) {
		rx, _ := spsc.Unbounded[int]()
		ctx, cancel := context.WithCancel(context.Background())

		var derr error
		var group errgroup.Group
		group.Go(func() error {
			_, derr = rx.DequeueContext(ctx)
			return nil
		})

		cancel()
		require.NoError(t, group.Wait())
		assert.ErrorIs(t, derr, context.Canceled)
	})

	t.Run("close unblocks dequeue", func(t *testing.T) {
		rx, tx := spsc.Unbounded[int]()

		var derr error
		var group errgroup.Group
		group.Go(func() error {
			_, derr = rx.DequeueContext(context.Background())
			return nil
		})

		tx.Close()
		require.NoError(t, group.Wait())
		assert.ErrorIs(t, derr, queues.ErrClosed)
	})
}

// Recycled nodes must come back clean: interleaved enqueue/dequeue churns
// through the recycle ring far more often than it allocates.
func TestUnboundedRecycling(t *testing.T) {
	rx, tx := spsc.Unbounded[[]int]()

	for i := 0; i < 1000; i++ {
		require.NoError(t, tx.Enqueue([]int{i}))
		v, err := rx.TryDequeue()
		require.NoError(t, err)
		require.Equal(t, []int{i}, v)
	}
}

func TestUnboundedPipeline(t *testing.T) {
	const N = 10000

	rx, tx := spsc.Unbounded[int]()

	var group errgroup.Group
	group.Go(func() error {
		for i := 0; i < N; i++ {
			if err := tx.Enqueue(i); err != nil {
				return err
			}
		}
		tx.Close()
		return nil
	})

	next := 0
	var bo spin.Backoff
	for {
		v, err := rx.TryDequeue()
		if err == nil {
			require.Equal(t, next, v)
			next++
			bo.Reset()
			continue
		}
		if errors.Is(err, queues.ErrClosed) {
			break
		}
		bo.Wait()
	}
	require.NoError(t, group.Wait())
	assert.Equal(t, N, next)
}
