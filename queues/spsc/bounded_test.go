package spsc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Lol3rrr/nolock/internal/spin"
	"github.com/Lol3rrr/nolock/queues"
	"github.com/Lol3rrr/nolock/queues/spsc"
)

func TestBoundedBasic(t *testing.T) {
	rx, tx := spsc.Bounded[int](4)

	require.NoError(t, tx.TryEnqueue(13))
	require.NoError(t, tx.TryEnqueue(14))

	v, err := rx.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, 13, v)

	v, err = rx.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, 14, v)

	_, err = rx.TryDequeue()
	assert.ErrorIs(t, err, queues.ErrEmpty)
}

func TestBoundedFull(t *testing.T) {
	rx, tx := spsc.Bounded[int](4)

	for i := 0; i < tx.Cap(); i++ {
		require.NoError(t, tx.TryEnqueue(i))
	}
	assert.ErrorIs(t, tx.TryEnqueue(99), queues.ErrFull)

	// One slot freed, one enqueue possible again.
	_, err := rx.TryDequeue()
	require.NoError(t, err)
	assert.NoError(t, tx.TryEnqueue(99))
}

func TestBoundedClose(t *testing.T) {
	t.Run("sender closes", func(t *testing.T) {
		rx, tx := spsc.Bounded[int](4)

		require.NoError(t, tx.TryEnqueue(1))
		tx.Close()
		assert.True(t, rx.Closed())

		// The remaining element drains before ErrClosed.
		v, err := rx.TryDequeue()
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		_, err = rx.TryDequeue()
		assert.ErrorIs(t, err, queues.ErrClosed)
	})

	t.Run("receiver closes", func(t *testing.T) {
		rx, tx := spsc.Bounded[int](4)

		rx.Close()
		assert.True(t, tx.Closed())
		assert.ErrorIs(t, tx.TryEnqueue(1), queues.ErrClosed)
	})
}

// ErrClosed means drained, not just closed: a consumer polling across a
// close must still get the element enqueued right before it.
func TestBoundedCloseDrainsRacingEnqueue(t *testing.T) {
	const rounds = 10000

	for round := 0; round < rounds; round++ {
		rx, tx := spsc.Bounded[int](2)

		var group errgroup.Group
		group.Go(func() error {
			if err := tx.TryEnqueue(1); err != nil {
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

func TestBoundedContext(t *testing.T) {
	t.Run("dequeue waits for enqueue", func(t *testing.T) {
		rx, tx := spsc.Bounded[int](2)

		var got int
		var group errgroup.Group
		group.Go(func() error {
			v, err := rx.DequeueContext(context.Background())
			got = v
			return err
		})

		require.NoError(t, tx.TryEnqueue(42))
		require.NoError(t, group.Wait())
		assert.Equal(t, 42, got)
	})

	t.Run("enqueue waits for room", func(t *testing.T) {
		rx, tx := spsc.Bounded[int](2)
		for i := 0; i < tx.Cap(); i++ {
			require.NoError(t, tx.TryEnqueue(i))
		}

		var group errgroup.Group
		group.Go(func() error {
			return tx.EnqueueContext(context.Background(), 99)
		})

		v, err := rx.TryDequeue()
		require.NoError(t, err)
		assert.Equal(t, 0, v)
		require.NoError(t, group.Wait())

		v, err = rx.TryDequeue()
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		v, err = rx.TryDequeue()
		require.NoError(t, err)
		assert.Equal(t, 99, v)
	})

	t.Run("cancel unblocks dequeue", func(t *testing.T) {
		rx, _ := spsc.Bounded[int](2)
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
		rx, tx := spsc.Bounded[int](2)

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

// One producer, one consumer, sequence must come through unchanged.
func TestBoundedPipeline(t *testing.T) {
	const N = 10000

	rx, tx := spsc.Bounded[int](8)

	var group errgroup.Group
	group.Go(func() error {
		var bo spin.Backoff
		for i := 0; i < N; i++ {
			for tx.TryEnqueue(i) != nil {
				bo.Wait()
			}
			bo.Reset()
		}
		tx.Close()
		return nil
	})

	got := make([]int, 0, N)
	var bo spin.Backoff
	for {
		v, err := rx.TryDequeue()
		if err == nil {
			got = append(got, v)
			bo.Reset()
			continue
		}
		if rx.Closed() && len(got) == N {
			break
		}
		bo.Wait()
	}
	require.NoError(t, group.Wait())

	require.Len(t, got, N)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
