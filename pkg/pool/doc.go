// Package pool provides the workload-aware concurrent execution pool of
// the adaptive resource layer.
//
// Work units are independent: the pool schedules them FIFO from a bounded
// admission queue onto a worker set sized between MinWorkers and
// MaxWorkers. A full queue rejects submissions with ErrSaturated after a
// bounded wait instead of blocking callers indefinitely.
//
// # Resizing
//
// A dedicated loop recomputes the pool size on a fixed cadence from three
// inputs: CPU utilization from the load probe, the recent task failure
// rate from the metrics aggregator, and the current queue depth. The pool
// grows while CPU stays below the high-water mark, failures stay below
// threshold, and the queue is deeper than the worker count; it shrinks
// when CPU exceeds the overload mark or failures exceed threshold.
// Changes apply one worker per tick to avoid oscillation, and a probe
// failure skips the tick without touching the current size. A worker
// retired by a downsize finishes its in-flight unit before exiting.
//
// # Outcomes
//
// Every executed unit records exactly one task_success or task_failure
// sample, panics included. Cancelling a unit before a worker dequeues it
// completes its handle with a Cancelled outcome and records no sample;
// an in-flight action is never force-terminated.
//
// # Usage
//
//	p, err := pool.New(pool.Config{
//		MinWorkers:    2,
//		MaxWorkers:    8,
//		QueueCapacity: 64,
//		Probe:         probe.NewSystemProbe(logger),
//		Observer:      agg,
//	})
//	if err != nil {
//		return err
//	}
//	p.Start()
//	defer p.Shutdown(30 * time.Second)
//
//	h, err := p.Submit(pool.Unit{Action: func(ctx context.Context) (any, error) {
//		return invoker.Invoke(ctx, req)
//	}})
//	if err != nil {
//		return err // ErrSaturated: retry or shed load
//	}
//	result, err := h.Await(ctx)
package pool
