// Package testutil provides a mock upstream HTTP server for transport and
// executor tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

// Upstream is a scriptable fake of the external API the resource layer
// fronts.
type Upstream struct {
	Server *httptest.Server

	requests  atomic.Int64
	failFirst atomic.Int64
	status    atomic.Int64
	body      atomic.Value
}

// NewUpstream starts a mock upstream returning 200 with the given body.
// Callers must Close it.
func NewUpstream(body string) *Upstream {
	u := &Upstream{}
	u.status.Store(http.StatusOK)
	u.body.Store(body)
	u.Server = httptest.NewServer(http.HandlerFunc(u.handle))
	return u
}

func (u *Upstream) handle(w http.ResponseWriter, r *http.Request) {
	u.requests.Add(1)

	if u.failFirst.Load() > 0 {
		u.failFirst.Add(-1)
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	status := int(u.status.Load())
	w.WriteHeader(status)
	if status < 400 {
		w.Write([]byte(u.body.Load().(string)))
	}
}

// URL returns the server's base URL.
func (u *Upstream) URL() string { return u.Server.URL }

// Requests returns how many requests the upstream has served.
func (u *Upstream) Requests() int { return int(u.requests.Load()) }

// FailNext makes the next n requests answer 503 before recovering.
func (u *Upstream) FailNext(n int) { u.failFirst.Store(int64(n)) }

// SetStatus fixes the response status for all subsequent requests.
func (u *Upstream) SetStatus(status int) { u.status.Store(int64(status)) }

// Close shuts the server down.
func (u *Upstream) Close() { u.Server.Close() }
