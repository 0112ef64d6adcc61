package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one collector task.
type Result[T, R any] struct {
	Task  T
	Value R
	Err   error
}

// Collect runs fn for every task on a fixed pool of workers and streams the
// results in completion order. All tasks are enqueued up front. The returned
// channel is closed once every task has finished, and the caller must drain
// it. A task that fails or panics only affects its own Result.
//
// Tasks that have not started when ctx is cancelled report ctx.Err()
// without running.
func Collect[T, R any](ctx context.Context, workers int, tasks []T, fn func(context.Context, T) (R, error)) <-chan Result[T, R] {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(tasks) && len(tasks) > 0 {
		workers = len(tasks)
	}

	queue := make(chan T, len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	out := make(chan Result[T, R], workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for task := range queue {
				out <- runTask(ctx, task, fn)
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
	}()
	return out
}

func runTask[T, R any](ctx context.Context, task T, fn func(context.Context, T) (R, error)) (res Result[T, R]) {
	res.Task = task
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	res.Value, res.Err = fn(ctx, task)
	return res
}
