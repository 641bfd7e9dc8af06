package testsuite

import (
	"errors"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/Lol3rrr/nolock/queues"
)

func RunTests(t *testing.T, setup *Setup) {
	t.Helper()
	setup.Test(t, "Empty", testEmpty)
	setup.Test(t, "Sum", testSum)
	setup.Test(t, "SumConcurrent", testSumConcurrent)
}

func testEmpty(t *testing.T, setup *Setup) {
	q := setup.Make()

	if _, err := q.Dequeue(); !errors.Is(err, queues.ErrEmpty) {
		t.Fatalf("got %v expected %v", err, queues.ErrEmpty)
	}
}

// testSum runs concurrent producers against a drain at the end: the queue
// must neither lose nor invent elements.
func testSum(t *testing.T, setup *Setup) {
	const N = 100

	q := setup.Make()

	var group errgroup.Group
	for proc := 0; proc < setup.Procs; proc++ {
		group.Go(func() error {
			for i := 0; i < N; i++ {
				MustEnqueue(q, 1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatal(err)
	}

	var total int64
	for {
		v, err := q.Dequeue()
		if errors.Is(err, queues.ErrEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		total += v
	}
	if total != N*int64(setup.Procs) {
		t.Fatalf("got %v expected %v", total, N*setup.Procs)
	}
}

// testSumConcurrent runs producers and consumers at the same time.
func testSumConcurrent(t *testing.T, setup *Setup) {
	const N = 100

	q := setup.Make()
	expected := int64(setup.Procs) * N

	var consumed, total atomic.Int64
	var group errgroup.Group

	for proc := 0; proc < setup.Procs; proc++ {
		group.Go(func() error {
			for i := int64(0); i < N; i++ {
				MustEnqueue(q, i)
			}
			return nil
		})
		group.Go(func() error {
			for consumed.Load() < expected {
				v, err := q.Dequeue()
				if errors.Is(err, queues.ErrEmpty) {
					continue
				}
				if err != nil {
					return err
				}
				consumed.Add(1)
				total.Add(v)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatal(err)
	}

	// Which consumer got which element is unconstrained; the combined
	// sum is not.
	if want := int64(setup.Procs) * N * (N - 1) / 2; total.Load() != want {
		t.Fatalf("got %v expected %v", total.Load(), want)
	}
}
