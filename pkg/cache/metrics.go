package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks reads answered from a live entry.
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfkit_cache_hits_total",
		Help: "Total number of cache hits",
	})

	// cacheMisses tracks reads that found nothing usable.
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfkit_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// cacheEvictions tracks removed entries by cause.
	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfkit_cache_evictions_total",
		Help: "Total number of cache evictions by cause",
	}, []string{"cause"}) // "lru", "expired", "invalidated"

	// cacheSize tracks the current entry count.
	cacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perfkit_cache_entries",
		Help: "Current number of cache entries",
	})

	// cacheSweeps tracks expiry sweep passes that removed entries.
	cacheSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfkit_cache_sweeps_total",
		Help: "Total number of expiry sweeps that removed entries",
	})
)
