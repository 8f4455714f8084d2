// Package cache provides the in-memory response cache of the adaptive
// resource layer: a fingerprint-keyed map with TTL expiry and
// capacity-bounded LRU eviction.
//
// # Semantics
//
//   - Get returns a value only while now < expiresAt. An expired entry that
//     has not been swept yet is treated as absent and removed on the spot.
//   - Put inserts or overwrites; an overwrite resets createdAt and
//     expiresAt. When an insert would exceed capacity, expired entries are
//     collected first; only then is a live entry evicted.
//   - Eviction order is least-recently-accessed first. Entries with the
//     same lastAccessedAt are broken by earliest createdAt, so eviction is
//     deterministic under a coarse or mocked clock.
//   - Invalidate and Clear remove entries regardless of TTL; Invalidate on
//     an absent fingerprint is a no-op.
//
// Expired entries are removed lazily during Put under capacity pressure and
// on expired reads; Start launches an optional periodic sweep so that
// expired entries do not occupy slots indefinitely on idle caches.
//
// # Observability
//
// Every Get records exactly one cache_hit or cache_miss sample with the
// configured Recorder (normally the metrics aggregator). Prometheus
// counters mirror hits, misses, evictions by cause, and sweep passes.
//
// # Usage
//
//	agg, _ := metrics.New(metrics.DefaultConfig())
//	c, err := cache.New(cache.Config{
//		Capacity:      256,
//		DefaultTTL:    10 * time.Minute,
//		SweepInterval: time.Minute,
//		Recorder:      agg,
//	})
//	if err != nil {
//		return err
//	}
//	c.Start()
//	defer c.Stop()
//
//	c.Put(fingerprint, payload, 60*time.Second)
//	if v, ok := c.Get(fingerprint); ok {
//		// hit
//	}
package cache
