// Package metrics collects per-operation outcome samples from the cache and
// the worker pool into fixed-size per-kind ring buffers, and exposes rolling
// summaries over them. Overflow silently overwrites the oldest sample: the
// window is lossy by design, not a queue.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/BryanMarcialC/perfkit/pkg/codec"
)

// Default sizing for the rolling windows.
const (
	DefaultWindowSize  = 1000
	DefaultSlowLogSize = 50
)

// Config holds aggregator configuration.
type Config struct {
	// WindowSize is the per-kind ring buffer capacity. Must be > 0.
	WindowSize int

	// SlowThreshold marks samples slower than this for the slow log.
	// Zero disables slow tracking.
	SlowThreshold time.Duration

	// SlowLogSize bounds the slow log; oldest entries are dropped.
	SlowLogSize int

	// Codec serializes exported snapshots. Defaults to codec.Std.
	Codec codec.Codec

	// Clock supplies timestamps; defaults to the wall clock. Tests
	// inject a mock.
	Clock clock.Clock

	// Logger for aggregator events.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:  DefaultWindowSize,
		SlowLogSize: DefaultSlowLogSize,
		Codec:       codec.Std{},
	}
}

// Summary is a rolling view over the most recent samples of one kind.
type Summary struct {
	// Count is the number of samples in the examined window.
	Count int `json:"count"`

	// MeanDuration is the arithmetic mean over the window.
	MeanDuration time.Duration `json:"mean_duration_nanos"`

	// P95Duration is the 95th percentile duration over the window.
	P95Duration time.Duration `json:"p95_duration_nanos"`

	// Rate is hits/(hits+misses) for cache kinds and
	// failures/(successes+failures) for task kinds, over the window.
	Rate float64 `json:"rate"`
}

// SlowSample is a sample whose duration exceeded the slow threshold.
type SlowSample struct {
	Kind     Kind          `json:"kind"`
	Duration time.Duration `json:"duration_nanos"`
	At       time.Time     `json:"at"`
}

// Snapshot is a point-in-time defensive copy of all summaries, safe to
// serialize and hand to external dashboards.
type Snapshot struct {
	CapturedAt time.Time        `json:"captured_at"`
	WindowSize int              `json:"window_size"`
	Summaries  map[Kind]Summary `json:"summaries"`
	SlowLog    []SlowSample     `json:"slow_log,omitempty"`
}

// ring is a fixed-size overwrite-on-overflow sample buffer for one kind.
// Each kind owns an independent lock to avoid cross-kind contention.
type ring struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	total   uint64
}

func (r *ring) append(s Sample) {
	r.mu.Lock()
	r.samples[r.next] = s
	r.next = (r.next + 1) % len(r.samples)
	r.total++
	r.mu.Unlock()
}

// recent copies up to n of the most recent samples, newest last.
// n <= 0 means the whole buffer.
func (r *ring) recent(n int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := len(r.samples)
	if r.total < uint64(stored) {
		stored = int(r.total)
	}
	if n <= 0 || n > stored {
		n = stored
	}

	out := make([]Sample, 0, n)
	// Oldest of the requested window first; next points one past the
	// newest sample.
	start := r.next - n
	for i := 0; i < n; i++ {
		idx := start + i
		if idx < 0 {
			idx += len(r.samples)
		}
		out = append(out, r.samples[idx%len(r.samples)])
	}
	return out
}

func (r *ring) count(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := len(r.samples)
	if r.total < uint64(stored) {
		stored = int(r.total)
	}
	if n <= 0 || n > stored {
		return stored
	}
	return n
}

// Aggregator is the shared observability substrate for the cache and the
// worker pool. Record never fails and never blocks callers.
type Aggregator struct {
	cfg   Config
	clock clock.Clock
	rings map[Kind]*ring

	slowMu  sync.Mutex
	slowLog []SlowSample

	logger zerolog.Logger
}

// New creates an aggregator. Invalid window sizing fails fast.
func New(cfg Config) (*Aggregator, error) {
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("metrics: window size must be > 0 (got %d)", cfg.WindowSize)
	}
	if cfg.SlowLogSize < 0 {
		return nil, fmt.Errorf("metrics: slow log size must be >= 0 (got %d)", cfg.SlowLogSize)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Std{}
	}

	rings := make(map[Kind]*ring, len(Kinds))
	for _, k := range Kinds {
		rings[k] = &ring{samples: make([]Sample, cfg.WindowSize)}
	}

	return &Aggregator{
		cfg:    cfg,
		clock:  cfg.Clock,
		rings:  rings,
		logger: cfg.Logger,
	}, nil
}

// Record appends a sample to the ring buffer for its kind. O(1); samples of
// unknown kind and negative durations are normalized rather than rejected.
func (a *Aggregator) Record(s Sample) {
	if !s.Kind.Valid() {
		return
	}
	if s.Duration < 0 {
		s.Duration = 0
	}
	if s.At.IsZero() {
		s.At = a.clock.Now()
	}

	a.rings[s.Kind].append(s)
	samplesTotal.WithLabelValues(string(s.Kind)).Inc()
	sampleDuration.WithLabelValues(string(s.Kind)).Observe(s.Duration.Seconds())

	if a.cfg.SlowThreshold > 0 && s.Duration > a.cfg.SlowThreshold {
		a.recordSlow(s)
	}
}

func (a *Aggregator) recordSlow(s Sample) {
	a.slowMu.Lock()
	a.slowLog = append(a.slowLog, SlowSample{Kind: s.Kind, Duration: s.Duration, At: s.At})
	if len(a.slowLog) > a.cfg.SlowLogSize {
		a.slowLog = a.slowLog[len(a.slowLog)-a.cfg.SlowLogSize:]
	}
	a.slowMu.Unlock()

	slowSamplesTotal.WithLabelValues(string(s.Kind)).Inc()
	a.logger.Warn().
		Str("kind", string(s.Kind)).
		Dur("duration", s.Duration).
		Dur("threshold", a.cfg.SlowThreshold).
		Msg("Slow operation recorded")
}

// Summary computes a rolling summary over the most recent window samples of
// the given kind. window <= 0 means the entire buffer.
func (a *Aggregator) Summary(kind Kind, window int) Summary {
	r, ok := a.rings[kind]
	if !ok {
		return Summary{}
	}

	samples := r.recent(window)
	s := Summary{Count: len(samples)}
	if len(samples) > 0 {
		durations := make([]time.Duration, len(samples))
		var sum time.Duration
		for i, sample := range samples {
			durations[i] = sample.Duration
			sum += sample.Duration
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		s.MeanDuration = sum / time.Duration(len(samples))
		s.P95Duration = durations[percentileIndex(len(durations), 0.95)]
	}

	s.Rate = a.rate(kind, window)
	return s
}

// rate computes the window rate for kind: hit share for cache kinds,
// failure share for task kinds.
func (a *Aggregator) rate(kind Kind, window int) float64 {
	var num, den int
	switch kind {
	case KindCacheHit, KindCacheMiss:
		hits := a.rings[KindCacheHit].count(window)
		misses := a.rings[KindCacheMiss].count(window)
		num, den = hits, hits+misses
	case KindTaskSuccess, KindTaskFailure:
		successes := a.rings[KindTaskSuccess].count(window)
		failures := a.rings[KindTaskFailure].count(window)
		num, den = failures, successes+failures
	}
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// FailureRate is a convenience for the pool's resize policy: the share of
// task failures over the most recent window samples.
func (a *Aggregator) FailureRate(window int) float64 {
	return a.rate(KindTaskFailure, window)
}

// HitRate is a convenience for cache stats: the share of cache hits over
// the most recent window samples.
func (a *Aggregator) HitRate(window int) float64 {
	return a.rate(KindCacheHit, window)
}

// Export returns a point-in-time copy of all summaries. The snapshot shares
// no mutable state with the aggregator.
func (a *Aggregator) Export() Snapshot {
	snap := Snapshot{
		CapturedAt: a.clock.Now(),
		WindowSize: a.cfg.WindowSize,
		Summaries:  make(map[Kind]Summary, len(Kinds)),
	}
	for _, k := range Kinds {
		snap.Summaries[k] = a.Summary(k, 0)
	}

	a.slowMu.Lock()
	if len(a.slowLog) > 0 {
		snap.SlowLog = make([]SlowSample, len(a.slowLog))
		copy(snap.SlowLog, a.slowLog)
	}
	a.slowMu.Unlock()

	return snap
}

// MarshalSnapshot exports and serializes a snapshot with the configured codec.
func (a *Aggregator) MarshalSnapshot() ([]byte, error) {
	data, err := a.cfg.Codec.Marshal(a.Export())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot (%s): %w", a.cfg.Codec.Name(), err)
	}
	return data, nil
}

// percentileIndex returns the index of the p-th percentile in a sorted
// slice of length n (nearest-rank method).
func percentileIndex(n int, p float64) int {
	if n == 0 {
		return 0
	}
	idx := int(float64(n)*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}
