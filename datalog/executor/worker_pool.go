package executor

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds the number of goroutines used for embarrassingly
// parallel work such as the rule tasks of one round
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool
// workerCount: number of worker goroutines (0 = use NumCPU)
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// WorkerCount returns the number of worker goroutines
func (p *WorkerPool) WorkerCount() int {
	return p.workerCount
}

// ExecuteParallel runs operation on every input and returns the results in
// input order. The first error cancels the remaining work and is returned
// wrapped with the failing index.
func ExecuteParallel[I, O any](
	ctx context.Context,
	pool *WorkerPool,
	inputs []I,
	operation func(context.Context, I) (O, error),
) ([]O, error) {
	results := make([]O, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}

	// Nothing to gain from goroutines
	if pool == nil || pool.workerCount == 1 || len(inputs) == 1 {
		for i, in := range inputs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := operation(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("execution failed at index %d: %w", i, err)
			}
			results[i] = out
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pool.workerCount)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := operation(gctx, in)
			if err != nil {
				return fmt.Errorf("parallel execution failed at index %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
