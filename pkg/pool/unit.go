package pool

import (
	"context"
	"sync/atomic"
	"time"
)

// Action is the callable a work unit executes. The context is cancelled
// when the pool shuts down; cancellation of an in-flight action is
// cooperative, never forced.
type Action func(ctx context.Context) (any, error)

// Unit describes one independent piece of work. Units are consumed exactly
// once by a worker and share no state with each other unless the action
// itself does.
type Unit struct {
	// Fingerprint optionally identifies the unit's request for cache
	// composition and logging. The pool itself never touches the cache.
	Fingerprint string

	// Action produces the unit's result.
	Action Action
}

// Outcome classifies how a work unit ended.
type Outcome int

const (
	// OutcomePending means the unit has not completed.
	OutcomePending Outcome = iota

	// OutcomeSuccess means the action returned without error.
	OutcomeSuccess

	// OutcomeFailure means the action returned an error or panicked.
	OutcomeFailure

	// OutcomeCancelled means the unit was cancelled before execution.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// task states, tracked with a CAS so that cancellation and worker pickup
// race deterministically.
const (
	statePending int32 = iota
	stateRunning
	stateDone
)

// task is the pool-internal representation of a submitted unit.
type task struct {
	id          uint64
	fingerprint string
	action      Action
	submittedAt time.Time

	state atomic.Int32
	done  chan struct{}

	// Set exactly once before done is closed.
	value   any
	err     error
	outcome Outcome
}

// begin transitions pending -> running. Returns false if the task was
// cancelled first; a worker must then skip it without recording a sample.
func (t *task) begin() bool {
	return t.state.CompareAndSwap(statePending, stateRunning)
}

// complete publishes the result. The caller must have won either begin()
// or the pending -> done CAS in cancel.
func (t *task) complete(value any, err error, outcome Outcome) {
	t.value = value
	t.err = err
	t.outcome = outcome
	t.state.Store(stateDone)
	close(t.done)
}

// cancel attempts pending -> done. Effective only before execution starts.
func (t *task) cancel() bool {
	if !t.state.CompareAndSwap(statePending, stateDone) {
		return false
	}
	t.value = nil
	t.err = ErrCancelled
	t.outcome = OutcomeCancelled
	close(t.done)
	return true
}

// Handle lets the caller await or cancel one submitted unit.
type Handle struct {
	t *task
}

// Await blocks until the unit completes or ctx is done. On success it
// returns the action's value; a cancelled unit yields ErrCancelled.
func (h *Handle) Await(ctx context.Context) (any, error) {
	select {
	case <-h.t.done:
		return h.t.value, h.t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel requests cooperative cancellation. It returns true if the unit
// had not started and is now complete with a Cancelled outcome; an
// in-flight or finished unit is unaffected.
func (h *Handle) Cancel() bool {
	return h.t.cancel()
}

// Outcome returns the unit's final outcome, or OutcomePending while the
// unit has not completed.
func (h *Handle) Outcome() Outcome {
	select {
	case <-h.t.done:
		return h.t.outcome
	default:
		return OutcomePending
	}
}
