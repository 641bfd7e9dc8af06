//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/Lol3rrr/nolock/queues/mpmc"
)

const (
	P = 100
	N = 10000
)

type LockedQueue struct {
	mu    sync.Mutex
	items []int
}

func (q *LockedQueue) Enqueue(v int) error {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	return nil
}

func (q *LockedQueue) Dequeue() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, fmt.Errorf("empty")
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, nil
}

type Queue interface {
	Enqueue(int) error
	Dequeue() (int, error)
}

func main() {
	fmt.Println("LockFree", Bench(mpmc.New[int](nil)))
	fmt.Println("Locked  ", Bench(&LockedQueue{}))
}

func Bench(q Queue) time.Duration {
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(2 * P)
	for i := 0; i < P; i++ {
		go func() {
			for i := 0; i < N; i++ {
				q.Enqueue(i)
			}
			wg.Done()
		}()
		go func() {
			for i := 0; i < N; i++ {
				q.Dequeue()
			}
			wg.Done()
		}()
	}
	wg.Wait()

	return time.Since(start)
}
