// Package exec composes the cache and the worker pool into a single
// cached-execution entry point. A Do call first consults the cache,
// collapses concurrent misses for the same fingerprint into one
// in-flight execution, runs the action on the pool, and stores the
// result for subsequent callers.
package exec

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/BryanMarcialC/perfkit/pkg/cache"
	"github.com/BryanMarcialC/perfkit/pkg/pool"
)

// Config holds executor configuration.
type Config struct {
	// Cache stores results by fingerprint. Required.
	Cache *cache.Cache

	// Pool runs actions on cache misses. Required. The pool must be
	// started by the caller.
	Pool *pool.Pool

	// DefaultTTL applies when Do is called with a non-positive TTL.
	// Zero falls back to the cache's own default.
	DefaultTTL time.Duration

	// Logger for executor events.
	Logger zerolog.Logger
}

// Executor is the cached-execution facade over cache and pool.
type Executor struct {
	cache      *cache.Cache
	pool       *pool.Pool
	defaultTTL time.Duration
	flight     singleflight.Group
	logger     zerolog.Logger
}

// New creates an executor. Cache and Pool are required.
func New(cfg Config) (*Executor, error) {
	if cfg.Cache == nil {
		return nil, &pool.ConfigError{Field: "Cache", Reason: "must not be nil"}
	}
	if cfg.Pool == nil {
		return nil, &pool.ConfigError{Field: "Pool", Reason: "must not be nil"}
	}
	return &Executor{
		cache:      cfg.Cache,
		pool:       cfg.Pool,
		defaultTTL: cfg.DefaultTTL,
		logger:     cfg.Logger.With().Str("component", "executor").Logger(),
	}, nil
}

// Do returns the cached value for fingerprint, or runs action on the
// pool and caches its result for ttl. Concurrent misses for the same
// fingerprint share one execution. Failures are not cached.
func (e *Executor) Do(ctx context.Context, fingerprint string, ttl time.Duration, action pool.Action) (any, error) {
	if value, ok := e.cache.Get(fingerprint); ok {
		return value, nil
	}

	value, err, shared := e.flight.Do(fingerprint, func() (any, error) {
		// A concurrent caller may have filled the cache between the
		// miss above and this closure winning the flight.
		if value, ok := e.cache.Get(fingerprint); ok {
			return value, nil
		}

		handle, err := e.pool.Submit(pool.Unit{
			Fingerprint: fingerprint,
			Action:      action,
		})
		if err != nil {
			return nil, err
		}

		value, err := handle.Await(ctx)
		if err != nil {
			return nil, err
		}

		e.cache.Put(fingerprint, value, e.effectiveTTL(ttl))
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.Debug().Str("fingerprint", fingerprint).Msg("Execution shared with concurrent caller")
	}
	return value, nil
}

// Invalidate drops the cached value for fingerprint, forcing the next
// Do to execute.
func (e *Executor) Invalidate(fingerprint string) {
	e.cache.Invalidate(fingerprint)
}

func (e *Executor) effectiveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return e.defaultTTL
}
