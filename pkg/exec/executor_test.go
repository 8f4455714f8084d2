package exec

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BryanMarcialC/perfkit/pkg/cache"
	"github.com/BryanMarcialC/perfkit/pkg/metrics"
	"github.com/BryanMarcialC/perfkit/pkg/pool"
)

func newTestExecutor(t *testing.T) (*Executor, *pool.Pool) {
	t.Helper()

	agg, err := metrics.New(metrics.Config{WindowSize: 100, Logger: zerolog.New(io.Discard)})
	if err != nil {
		t.Fatalf("metrics.New() error = %v", err)
	}

	c, err := cache.New(cache.Config{
		Capacity:   32,
		DefaultTTL: time.Minute,
		Recorder:   agg,
		Logger:     zerolog.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}

	p, err := pool.New(pool.Config{
		MinWorkers:    2,
		MaxWorkers:    4,
		QueueCapacity: 32,
		EnqueueWait:   100 * time.Millisecond,
		Observer:      agg,
		Logger:        zerolog.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("pool.New() error = %v", err)
	}
	p.Start()
	t.Cleanup(func() { p.Shutdown(time.Second) })

	e, err := New(Config{Cache: c, Pool: p, DefaultTTL: time.Minute, Logger: zerolog.New(io.Discard)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e, p
}

func TestExecutor_NewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with nil cache and pool expected error")
	}
}

func TestExecutor_MissThenHit(t *testing.T) {
	e, _ := newTestExecutor(t)

	var calls atomic.Int64
	action := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "result", nil
	}

	for i := 0; i < 3; i++ {
		value, err := e.Do(context.Background(), "orders:42", time.Minute, action)
		if err != nil {
			t.Fatalf("Do() call %d error = %v", i, err)
		}
		if value != "result" {
			t.Fatalf("Do() call %d = %v, want %q", i, value, "result")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("action executed %d times, want 1", got)
	}
}

func TestExecutor_FailureNotCached(t *testing.T) {
	e, _ := newTestExecutor(t)

	var calls atomic.Int64
	boom := errors.New("upstream down")
	failing := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	}

	if _, err := e.Do(context.Background(), "orders:err", time.Minute, failing); !errors.Is(err, boom) {
		t.Fatalf("Do() error = %v, want %v", err, boom)
	}
	if _, err := e.Do(context.Background(), "orders:err", time.Minute, failing); !errors.Is(err, boom) {
		t.Fatalf("Do() second call error = %v, want %v", err, boom)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("action executed %d times, want 2 (failures must not cache)", got)
	}
}

func TestExecutor_ConcurrentMissesShareExecution(t *testing.T) {
	e, _ := newTestExecutor(t)

	var calls atomic.Int64
	release := make(chan struct{})
	action := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Do(context.Background(), "orders:shared", time.Minute, action)
		}(i)
	}

	// Let the callers pile up on the in-flight execution.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Fatalf("caller %d result = %v, want %q", i, results[i], "shared")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("action executed %d times, want 1", got)
	}
}

func TestExecutor_DistinctFingerprintsRunSeparately(t *testing.T) {
	e, _ := newTestExecutor(t)

	var calls atomic.Int64
	action := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return calls.Load(), nil
	}

	if _, err := e.Do(context.Background(), "orders:1", time.Minute, action); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if _, err := e.Do(context.Background(), "orders:2", time.Minute, action); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("action executed %d times, want 2", got)
	}
}

func TestExecutor_InvalidateForcesReexecution(t *testing.T) {
	e, _ := newTestExecutor(t)

	var calls atomic.Int64
	action := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	if _, err := e.Do(context.Background(), "orders:inv", time.Minute, action); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	e.Invalidate("orders:inv")
	if _, err := e.Do(context.Background(), "orders:inv", time.Minute, action); err != nil {
		t.Fatalf("Do() after Invalidate error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("action executed %d times, want 2", got)
	}
}

func TestExecutor_PoolClosed(t *testing.T) {
	e, p := newTestExecutor(t)
	if err := p.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	_, err := e.Do(context.Background(), "orders:late", time.Minute, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, pool.ErrClosed) {
		t.Errorf("Do() error = %v, want ErrClosed", err)
	}
}
