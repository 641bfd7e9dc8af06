package testsuite

import (
	"fmt"
	"testing"
)

var (
	Test = Params{
		Procs: []int{1, 2, 3, 4, 8, 16, 32},
		Sizes: []int{2, 8, 64, 1024},
	}

	Bench = Params{
		Procs: []int{1, 4, 32, 256},
		Sizes: []int{64, 1024},
	}
)

// Queue is the surface every MPMC-capable queue under test provides.
type Queue interface {
	Enqueue(int64) error
	Dequeue() (int64, error)
}

type Desc struct {
	Name    string
	Bounded bool
	Create  func(bound int) Queue
}

type Descs []Desc

type Params struct {
	Procs []int
	Sizes []int
}

func (params *Params) Iterate(descs Descs, fn func(*Setup)) {
	setup := Setup{}
	for _, desc := range descs {
		setup.Name = desc.Name
		setup.Create = desc.Create

		sizes := params.Sizes
		if !desc.Bounded {
			sizes = []int{0}
		}

		for _, setup.Size = range sizes {
			for _, setup.Procs = range params.Procs {
				tmp := setup
				fn(&tmp)
			}
		}
	}
}

type Setup struct {
	Name   string
	Create func(bound int) Queue
	Size   int
	Procs  int
}

func (setup *Setup) Make() Queue {
	return setup.Create(setup.Size)
}

func (setup *Setup) FullName(test string) string {
	return fmt.Sprintf("%v/s%v/%v/p%v",
		setup.Name,
		setup.Size,
		test,
		setup.Procs,
	)
}

func (setup *Setup) Test(t *testing.T, name string, test func(t *testing.T, setup *Setup)) {
	t.Helper()
	t.Run(setup.FullName(name), func(t *testing.T) {
		test(t, setup)
	})
}

func (setup *Setup) Bench(b *testing.B, name string, bench func(b *testing.B, setup *Setup)) {
	b.Helper()
	b.Run(setup.FullName(name), func(b *testing.B) {
		bench(b, setup)
	})
}
