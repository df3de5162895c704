package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// badger pulls in glog, whose flush daemon starts at package init
var leakOptions = []goleak.Option{
	goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
}

func TestWorkerPool_OrderPreserving(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	pool := NewWorkerPool(4)

	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}

	// Operation: double the value
	results, err := ExecuteParallel(context.Background(), pool, inputs, func(ctx context.Context, in int) (int, error) {
		return in * 2, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 100)
	for i, r := range results {
		assert.Equal(t, i*2, r, "result %d", i)
	}
}

func TestWorkerPool_ErrorHandling(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	pool := NewWorkerPool(4)

	inputs := make([]int, 10)
	for i := range inputs {
		inputs[i] = i
	}

	// Operation that fails on index 5
	results, err := ExecuteParallel(context.Background(), pool, inputs, func(ctx context.Context, in int) (int, error) {
		if in == 5 {
			return 0, fmt.Errorf("intentional error at %d", in)
		}
		return in * 2, nil
	})
	require.Error(t, err)
	assert.Nil(t, results, "results should be nil on error")
	assert.Equal(t, "parallel execution failed at index 5: intentional error at 5", err.Error())
}

func TestWorkerPool_Sequential(t *testing.T) {
	pool := NewWorkerPool(1)
	assert.Equal(t, 1, pool.WorkerCount())

	var order []int
	_, err := ExecuteParallel(context.Background(), pool, []int{3, 1, 2}, func(ctx context.Context, in int) (int, error) {
		order = append(order, in)
		return in, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, order, "sequential pools run in input order")

	_, err = ExecuteParallel(context.Background(), pool, []int{1, 2}, func(ctx context.Context, in int) (int, error) {
		return 0, fmt.Errorf("boom")
	})
	assert.EqualError(t, err, "execution failed at index 0: boom")
}

func TestWorkerPool_Concurrency(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	pool := NewWorkerPool(3)

	var active, peak int32
	inputs := make([]int, 12)
	_, err := ExecuteParallel(context.Background(), pool, inputs, func(ctx context.Context, in int) (int, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return in, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3), "never more goroutines than workers")
}

func TestWorkerPool_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteParallel(ctx, NewWorkerPool(2), []int{1, 2, 3}, func(ctx context.Context, in int) (int, error) {
		return in, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerPool_Empty(t *testing.T) {
	results, err := ExecuteParallel(context.Background(), NewWorkerPool(0), []int{}, func(ctx context.Context, in int) (int, error) {
		return in, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
