package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Job is one input and its outcome.
type Job[T any, R any] struct {
	Input  T
	Output R
	Err    error
}

// Func processes a single input.
type Func[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool runs a Func over a slice of inputs with bounded concurrency.
type Pool[T any, R any] struct {
	workers int
	fn      Func[T, R]
}

// NewPool creates a pool. Fewer than one worker means one.
func NewPool[T any, R any](workers int, fn Func[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, fn: fn}
}

// Run processes every input and returns jobs in input order.
// Inputs not started before ctx is done carry ctx.Err().
func (p *Pool[T, R]) Run(ctx context.Context, inputs []T) []Job[T, R] {
	jobs := make([]Job[T, R], len(inputs))
	for i, in := range inputs {
		jobs[i].Input = in
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(p.workers, len(inputs)); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range idx {
				if err := ctx.Err(); err != nil {
					jobs[i].Err = err
					continue
				}
				jobs[i].Output, jobs[i].Err = p.fn(ctx, inputs[i])
				if jobs[i].Err != nil {
					log.Debug().Err(jobs[i].Err).Int("worker", workerID).Int("index", i).Msg("Task failed")
				}
			}
		}(w)
	}

	for i := range inputs {
		idx <- i
	}
	close(idx)
	wg.Wait()
	return jobs
}
