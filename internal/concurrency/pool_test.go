package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PreservesOrder(t *testing.T) {
	tasks := make([]func(context.Context) (int, error), 5)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) { return i * i, nil }
	}
	out, err := Run(context.Background(), 2, tasks)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4, 9, 16}, out)
}

func TestRun_RespectsLimit(t *testing.T) {
	var current, maxSeen int64
	tasks := make([]func(context.Context) (int, error), 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt64(&maxSeen, old, n) {
					break
				}
			}
			atomic.AddInt64(&current, -1)
			return 0, nil
		}
	}
	_, err := Run(context.Background(), 3, tasks)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxSeen), int64(3))
}

func TestRun_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	tasks := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, boom },
	}
	_, err := Run(context.Background(), 0, tasks)
	assert.ErrorIs(t, err, boom)
}

func TestRunIsolated_OneFailureDoesNotSuppressOthers(t *testing.T) {
	boom := errors.New("boom")
	tasks := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, boom },
		func(ctx context.Context) (int, error) { return 3, nil },
	}
	out := RunIsolated(context.Background(), 0, tasks)
	require.Len(t, out, 3)
	assert.Equal(t, 1, out[0].Value)
	assert.ErrorIs(t, out[1].Err, boom)
	assert.Equal(t, 3, out[2].Value)
}
