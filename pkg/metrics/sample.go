package metrics

import "time"

// Kind classifies an outcome sample.
type Kind string

const (
	// KindCacheHit is recorded when a cache read returns a live entry.
	KindCacheHit Kind = "cache_hit"

	// KindCacheMiss is recorded when a cache read finds nothing usable.
	KindCacheMiss Kind = "cache_miss"

	// KindTaskSuccess is recorded when a work unit's action completes.
	KindTaskSuccess Kind = "task_success"

	// KindTaskFailure is recorded when a work unit's action returns an
	// error or panics.
	KindTaskFailure Kind = "task_failure"
)

// Kinds lists all sample kinds the aggregator tracks.
var Kinds = []Kind{KindCacheHit, KindCacheMiss, KindTaskSuccess, KindTaskFailure}

// Valid reports whether k is a known sample kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCacheHit, KindCacheMiss, KindTaskSuccess, KindTaskFailure:
		return true
	default:
		return false
	}
}

// counterpart returns the kind paired with k for rate computation:
// hits pair with misses, successes with failures.
func (k Kind) counterpart() Kind {
	switch k {
	case KindCacheHit:
		return KindCacheMiss
	case KindCacheMiss:
		return KindCacheHit
	case KindTaskSuccess:
		return KindTaskFailure
	case KindTaskFailure:
		return KindTaskSuccess
	default:
		return k
	}
}

// Sample is a single observed operation outcome.
type Sample struct {
	// Kind classifies the outcome.
	Kind Kind `json:"kind"`

	// Duration is the measured operation duration. Never negative.
	Duration time.Duration `json:"duration_nanos"`

	// At is when the outcome was observed. Zero means "now" at record time.
	At time.Time `json:"at"`
}
