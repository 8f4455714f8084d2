// Package probe supplies on-demand system load samples (CPU and memory
// utilization) used by the worker pool's resize policy.
package probe

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable indicates the probe could not produce a load sample.
// Consumers are expected to degrade gracefully (skip the tick) rather
// than treat this as fatal.
var ErrUnavailable = errors.New("load probe unavailable")

// Load is a point-in-time snapshot of system resource utilization.
type Load struct {
	// CPUPercent is the overall CPU utilization in percent (0-100).
	CPUPercent float64

	// MemPercent is the used physical memory in percent (0-100).
	MemPercent float64
}

// Probe samples system load on demand.
type Probe interface {
	Sample(ctx context.Context) (Load, error)
}

// StaticProbe returns a fixed load value. It is used in tests and for
// simulated load scenarios; Set and Fail may be called concurrently
// with Sample.
type StaticProbe struct {
	mu   sync.RWMutex
	load Load
	err  error
}

// NewStaticProbe creates a probe that always reports the given utilization.
func NewStaticProbe(cpuPercent, memPercent float64) *StaticProbe {
	return &StaticProbe{
		load: Load{CPUPercent: cpuPercent, MemPercent: memPercent},
	}
}

// Set replaces the reported load and clears any configured failure.
func (p *StaticProbe) Set(cpuPercent, memPercent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.load = Load{CPUPercent: cpuPercent, MemPercent: memPercent}
	p.err = nil
}

// Fail makes subsequent Sample calls return the given error.
func (p *StaticProbe) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Sample implements Probe.
func (p *StaticProbe) Sample(ctx context.Context) (Load, error) {
	if err := ctx.Err(); err != nil {
		return Load{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return Load{}, p.err
	}
	return p.load, nil
}
