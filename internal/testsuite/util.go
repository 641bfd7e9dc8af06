package testsuite

import (
	"errors"

	"github.com/Lol3rrr/nolock/internal/spin"
	"github.com/Lol3rrr/nolock/queues"
)

// MustEnqueue retries transient outcomes (full ring, exhausted node
// budget) until the element is in; anything else is a test bug.
func MustEnqueue(q Queue, v int64) {
	var bo spin.Backoff
	for {
		err := q.Enqueue(v)
		switch {
		case err == nil:
			return
		case errors.Is(err, queues.ErrFull), errors.Is(err, queues.ErrAllocation):
			bo.Wait()
		default:
			panic(err)
		}
	}
}
