package metrics

import "time"

// Timer is an explicit timing scope. Callers start it before an operation
// and stop it exactly once on exit, on every path including errors:
//
//	tm := agg.StartTimer()
//	err := action()
//	if err != nil {
//		tm.Stop(metrics.KindTaskFailure)
//	} else {
//		tm.Stop(metrics.KindTaskSuccess)
//	}
type Timer struct {
	agg   *Aggregator
	start time.Time
}

// StartTimer begins a timing scope against the aggregator's clock.
func (a *Aggregator) StartTimer() Timer {
	return Timer{agg: a, start: a.clock.Now()}
}

// Stop records one sample of the given kind with the elapsed duration.
func (t Timer) Stop(kind Kind) {
	now := t.agg.clock.Now()
	t.agg.Record(Sample{
		Kind:     kind,
		Duration: now.Sub(t.start),
		At:       now,
	})
}

// Observe runs fn inside a timing scope and records task_success or
// task_failure depending on the returned error. The sample is recorded
// even when fn panics.
func (a *Aggregator) Observe(fn func() error) (err error) {
	tm := a.StartTimer()
	defer func() {
		if r := recover(); r != nil {
			tm.Stop(KindTaskFailure)
			panic(r)
		}
		if err != nil {
			tm.Stop(KindTaskFailure)
		} else {
			tm.Stop(KindTaskSuccess)
		}
	}()
	return fn()
}
