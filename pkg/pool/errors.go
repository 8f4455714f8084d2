package pool

import (
	"errors"
	"fmt"
)

// Common errors returned by the pool.
var (
	// ErrSaturated is returned by Submit when the admission queue stays
	// full past the bounded enqueue wait. Callers retry or shed load.
	ErrSaturated = errors.New("pool saturated")

	// ErrCancelled is the outcome of a work unit that was cancelled
	// before a worker dequeued it. Not a failure.
	ErrCancelled = errors.New("work unit cancelled")

	// ErrClosed is returned by Submit after Shutdown began.
	ErrClosed = errors.New("pool closed")

	// ErrDrainTimeout is returned by Shutdown when the drain wait
	// elapsed with work still unfinished.
	ErrDrainTimeout = errors.New("drain wait elapsed")

	// ErrPanic wraps a recovered panic from a work unit's action.
	ErrPanic = errors.New("work unit panicked")
)

// ConfigError reports invalid pool configuration. Construction fails fast;
// a pool is never created with unusable bounds.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("pool config: %s: %s", e.Field, e.Reason)
}
