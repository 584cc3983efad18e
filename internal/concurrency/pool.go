// Package concurrency provides a small bounded-concurrency helper reused
// by the Safe-ingest fan-out: run N factories with at most K in flight.
package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run executes each of tasks with at most limit running concurrently,
// returning their results in the same order as tasks regardless of
// completion order. A task that returns an error cancels the context
// handed to the other tasks (every task is still started), and Run returns
// the first error observed; a failed task's result slot is the zero value.
func Run[T any](ctx context.Context, limit int, tasks []func(ctx context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			r, err := task(gctx)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// RunIsolated is Run but isolates each task's failure: a task's error never
// cancels its siblings or aborts the batch. Use this for fan-outs (like
// Safe-ingest's per-call analysis) where one bad entry shouldn't suppress
// the rest of the batch's results.
func RunIsolated[T any](ctx context.Context, limit int, tasks []func(ctx context.Context) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			r, err := task(gctx)
			outcomes[i] = Outcome[T]{Value: r, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// Outcome pairs a task's result with whatever error it returned.
type Outcome[T any] struct {
	Value T
	Err   error
}
