package cache

import (
	"container/list"
	"time"
)

// entry is a single cached value. Owned exclusively by the cache; immutable
// once stored except for lastAccessedAt, which moves on every read.
type entry struct {
	fingerprint    string
	value          any
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time

	// elem is the entry's position in the LRU list.
	elem *list.Element
}

// expired reports whether the entry is no longer valid for reads at now.
// An entry is live strictly before expiresAt.
func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// ttl returns the remaining time until expiry at now, or 0 if expired.
func (e *entry) ttl(now time.Time) time.Duration {
	remaining := e.expiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
