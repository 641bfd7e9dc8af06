package testsuite

import (
	"errors"
	"sync"
	"testing"

	"github.com/Lol3rrr/nolock/queues"
)

func RunBenchmarks(b *testing.B, setup *Setup) {
	b.Helper()
	setup.Bench(b, "PingPong", benchPingPong)
}

// benchPingPong measures an enqueue/dequeue pair per iteration, split
// across the configured number of goroutines.
func benchPingPong(b *testing.B, setup *Setup) {
	q := setup.Make()

	b.ResetTimer()

	var wg sync.WaitGroup
	wg.Add(setup.Procs)

	left := b.N
	for i := 0; i < setup.Procs; i++ {
		chunk := left / (setup.Procs - i)
		go func(n int) {
			for i := 0; i < n; i++ {
				MustEnqueue(q, 1)
				if _, err := q.Dequeue(); err != nil && !errors.Is(err, queues.ErrEmpty) {
					panic(err)
				}
			}
			wg.Done()
		}(chunk)
		left -= chunk
	}

	wg.Wait()
}
