package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCollectIsolatesFailures(t *testing.T) {
	tasks := make([]int, 100)
	for i := range tasks {
		tasks[i] = i
	}
	errBoom := errors.New("boom")

	var succeeded, failed int
	for res := range Collect(context.Background(), 8, tasks, func(_ context.Context, n int) (string, error) {
		if n == 42 {
			return "", errBoom
		}
		return fmt.Sprintf("pkg-%d", n), nil
	}) {
		if res.Err != nil {
			if !errors.Is(res.Err, errBoom) || res.Task != 42 {
				t.Fatalf("unexpected failure %v for task %d", res.Err, res.Task)
			}
			failed++
			continue
		}
		if res.Value != fmt.Sprintf("pkg-%d", res.Task) {
			t.Fatalf("value %q does not match task %d", res.Value, res.Task)
		}
		succeeded++
	}

	if succeeded != 99 || failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 99/1", succeeded, failed)
	}
}

func TestCollectBoundsWorkers(t *testing.T) {
	const workers = 3
	tasks := make([]int, 30)

	var running, peak int64
	var mu sync.Mutex
	for range Collect(context.Background(), workers, tasks, func(context.Context, int) (struct{}, error) {
		current := atomic.AddInt64(&running, 1)
		mu.Lock()
		if current > peak {
			peak = current
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&running, -1)
		return struct{}{}, nil
	}) {
	}

	if peak > workers {
		t.Fatalf("peak concurrency = %d, want <= %d", peak, workers)
	}
}

func TestCollectRecoversPanics(t *testing.T) {
	var errs int
	for res := range Collect(context.Background(), 2, []string{"ok", "bad"}, func(_ context.Context, s string) (int, error) {
		if s == "bad" {
			panic("nil page")
		}
		return len(s), nil
	}) {
		if res.Err != nil {
			errs++
			if res.Task != "bad" {
				t.Fatalf("panic attributed to %q", res.Task)
			}
		}
	}
	if errs != 1 {
		t.Fatalf("errors = %d, want 1", errs)
	}
}

func TestCollectNoTasks(t *testing.T) {
	count := 0
	for range Collect(context.Background(), 4, nil, func(context.Context, int) (int, error) {
		return 0, nil
	}) {
		count++
	}
	if count != 0 {
		t.Fatalf("results = %d, want 0", count)
	}
}

func TestCollectCancelledContextSkipsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	for res := range Collect(ctx, 2, []int{1, 2, 3}, func(context.Context, int) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 0, nil
	}) {
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", res.Err)
		}
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}
