package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/BryanMarcialC/perfkit/pkg/metrics"
)

// Recorder receives one outcome sample per cache read. Satisfied by
// *metrics.Aggregator.
type Recorder interface {
	Record(metrics.Sample)
}

// Config holds cache configuration.
type Config struct {
	// Capacity is the maximum number of entries. Must be > 0.
	Capacity int

	// DefaultTTL applies when Put is called with a non-positive TTL.
	// Zero means such entries are not stored at all.
	DefaultTTL time.Duration

	// SweepInterval drives the periodic expiry sweep started by Start.
	// Zero disables the ticker; expired entries are still collected
	// lazily during Put under capacity pressure and on expired reads.
	SweepInterval time.Duration

	// Clock supplies time; defaults to the wall clock.
	Clock clock.Clock

	// Recorder receives hit/miss samples. Nil disables reporting.
	Recorder Recorder

	// Logger for cache events.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      256,
		DefaultTTL:    10 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Cache is a time-bounded, size-bounded in-memory response cache keyed by
// fingerprint. Eviction is LRU over live entries, expired entries first;
// ties on last access go to the earliest createdAt.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently accessed

	cfg      Config
	clock    clock.Clock
	recorder Recorder
	logger   zerolog.Logger

	hits   uint64
	misses uint64

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates a cache. Invalid capacity fails fast.
func New(cfg Config) (*Cache, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("cache: capacity must be > 0 (got %d)", cfg.Capacity)
	}
	if cfg.DefaultTTL < 0 {
		return nil, fmt.Errorf("cache: default TTL must be >= 0 (got %v)", cfg.DefaultTTL)
	}
	if cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("cache: sweep interval must be >= 0 (got %v)", cfg.SweepInterval)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Cache{
		entries:  make(map[string]*entry, cfg.Capacity),
		lru:      list.New(),
		cfg:      cfg,
		clock:    cfg.Clock,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}, nil
}

// Get returns the stored value for fingerprint if present and not expired.
// Expired-but-unswept entries behave as absent and are removed on the spot.
// Every call records exactly one cache_hit or cache_miss sample.
func (c *Cache) Get(fingerprint string) (any, bool) {
	start := c.clock.Now()

	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	if ok && e.expired(start) {
		// Tombstone read: never serve an expired entry.
		c.removeLocked(e)
		cacheEvictions.WithLabelValues("expired").Inc()
		ok = false
	}

	var value any
	if ok {
		e.lastAccessedAt = start
		c.lru.MoveToFront(e.elem)
		value = e.value
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	kind := metrics.KindCacheMiss
	if ok {
		kind = metrics.KindCacheHit
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	c.record(kind, start)

	return value, ok
}

// Put inserts or overwrites the value under fingerprint. Overwriting resets
// both createdAt and expiresAt. When inserting would exceed capacity the
// cache first collects expired entries, then evicts the least-recently
// accessed live entry.
func (c *Cache) Put(fingerprint string, value any, ttl time.Duration) {
	if ttl <= 0 {
		if c.cfg.DefaultTTL <= 0 {
			return
		}
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if e, ok := c.entries[fingerprint]; ok {
		e.value = value
		e.createdAt = now
		e.expiresAt = now.Add(ttl)
		e.lastAccessedAt = now
		c.lru.MoveToFront(e.elem)
		return
	}

	if len(c.entries) >= c.cfg.Capacity {
		// Capacity pressure: lazy sweep first, expired entries must not
		// hold slots that a live insert needs.
		if c.sweepLocked(now) == 0 {
			c.evictLocked()
		}
	}

	e := &entry{
		fingerprint:    fingerprint,
		value:          value,
		createdAt:      now,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	}
	e.elem = c.lru.PushFront(e)
	c.entries[fingerprint] = e
	cacheSize.Set(float64(len(c.entries)))
}

// Invalidate removes the entry immediately regardless of TTL. Removing an
// absent fingerprint is a no-op.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fingerprint]; ok {
		c.removeLocked(e)
		cacheEvictions.WithLabelValues("invalidated").Inc()
	}
}

// Clear drops all entries. Intended for manual maintenance; never called
// automatically.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*entry, c.cfg.Capacity)
	c.lru.Init()
	cacheSize.Set(0)

	c.logger.Info().Int("dropped", n).Msg("Cache cleared")
}

// Len returns the current entry count, expired entries included until swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats is a point-in-time view of cache occupancy and effectiveness.
type Stats struct {
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	HitRate  float64 `json:"hit_rate"`
}

// Stats returns current occupancy and the lifetime hit rate.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Size: len(c.entries), Capacity: c.cfg.Capacity}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.clock.Now())
}

// Start launches the periodic sweep ticker. No-op when SweepInterval is
// zero or the sweeper is already running.
func (c *Cache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.SweepInterval <= 0 || c.sweepStop != nil {
		return
	}
	c.sweepStop = make(chan struct{})
	c.sweepDone = make(chan struct{})
	go c.sweepLoop(c.sweepStop, c.sweepDone)
}

// Stop halts the periodic sweep ticker and waits for it to exit.
func (c *Cache) Stop() {
	c.mu.Lock()
	stop, done := c.sweepStop, c.sweepDone
	c.sweepStop, c.sweepDone = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (c *Cache) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := c.clock.Ticker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug().Int("swept", n).Msg("Expiry sweep")
			}
		case <-stop:
			return
		}
	}
}

// sweepLocked removes every expired entry. Caller holds c.mu.
func (c *Cache) sweepLocked(now time.Time) int {
	swept := 0
	for _, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(e)
			swept++
		}
	}
	if swept > 0 {
		cacheEvictions.WithLabelValues("expired").Add(float64(swept))
		cacheSweeps.Inc()
	}
	return swept
}

// evictLocked drops the least-recently-accessed entry. Entries tying on
// lastAccessedAt lose by earliest createdAt, which keeps eviction order
// deterministic under a coarse clock. Caller holds c.mu.
func (c *Cache) evictLocked() {
	back := c.lru.Back()
	if back == nil {
		return
	}

	victim := back.Value.(*entry)
	for elem := back.Prev(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*entry)
		if !e.lastAccessedAt.Equal(victim.lastAccessedAt) {
			// The list is access-ordered; once timestamps differ the
			// tie region is over.
			break
		}
		if e.createdAt.Before(victim.createdAt) {
			victim = e
		}
	}

	c.removeLocked(victim)
	cacheEvictions.WithLabelValues("lru").Inc()

	c.logger.Debug().
		Str("fingerprint", victim.fingerprint).
		Time("last_accessed", victim.lastAccessedAt).
		Msg("Evicted LRU entry")
}

// removeLocked unlinks e from both structures. Caller holds c.mu.
func (c *Cache) removeLocked(e *entry) {
	delete(c.entries, e.fingerprint)
	c.lru.Remove(e.elem)
	cacheSize.Set(float64(len(c.entries)))
}

// record emits one hit/miss sample outside the cache lock.
func (c *Cache) record(kind metrics.Kind, start time.Time) {
	if c.recorder == nil {
		return
	}
	now := c.clock.Now()
	c.recorder.Record(metrics.Sample{
		Kind:     kind,
		Duration: now.Sub(start),
		At:       now,
	})
}
