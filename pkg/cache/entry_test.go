package cache

import (
	"testing"
	"time"
)

func TestEntry_Expired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{name: "live entry", expiresAt: now.Add(time.Minute), want: false},
		{name: "expired entry", expiresAt: now.Add(-time.Minute), want: true},
		{name: "exactly at expiry", expiresAt: now, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &entry{expiresAt: tt.expiresAt}
			if got := e.expired(now); got != tt.want {
				t.Errorf("expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	e := &entry{expiresAt: now.Add(30 * time.Second)}
	if got := e.ttl(now); got != 30*time.Second {
		t.Errorf("ttl() = %v, want 30s", got)
	}

	e = &entry{expiresAt: now.Add(-time.Second)}
	if got := e.ttl(now); got != 0 {
		t.Errorf("ttl() on expired entry = %v, want 0", got)
	}
}
