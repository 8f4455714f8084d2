package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BryanMarcialC/perfkit/internal/testutil"
	"github.com/BryanMarcialC/perfkit/pkg/cache"
	"github.com/BryanMarcialC/perfkit/pkg/exec"
	"github.com/BryanMarcialC/perfkit/pkg/metrics"
	"github.com/BryanMarcialC/perfkit/pkg/pool"
	"github.com/BryanMarcialC/perfkit/pkg/transport"
)

func newTestStack(t *testing.T) (*cache.Cache, *pool.Pool, *metrics.Aggregator, *exec.Executor) {
	t.Helper()

	agg, err := metrics.New(metrics.Config{WindowSize: 100, Logger: zerolog.New(io.Discard)})
	if err != nil {
		t.Fatalf("metrics.New() error = %v", err)
	}
	c, err := cache.New(cache.Config{
		Capacity:   16,
		DefaultTTL: time.Minute,
		Recorder:   agg,
		Logger:     zerolog.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	p, err := pool.New(pool.Config{
		MinWorkers:    2,
		MaxWorkers:    4,
		QueueCapacity: 16,
		EnqueueWait:   50 * time.Millisecond,
		Observer:      agg,
		Logger:        zerolog.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("pool.New() error = %v", err)
	}
	p.Start()
	t.Cleanup(func() { p.Shutdown(time.Second) })

	e, err := exec.New(exec.Config{Cache: c, Pool: p, DefaultTTL: time.Minute, Logger: zerolog.New(io.Discard)})
	if err != nil {
		t.Fatalf("exec.New() error = %v", err)
	}
	return c, p, agg, e
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "OK")
	}
}

func TestSnapshotHandler(t *testing.T) {
	_, _, agg, _ := newTestStack(t)
	agg.Record(metrics.Sample{Kind: metrics.KindCacheHit, Duration: time.Millisecond})

	rec := httptest.NewRecorder()
	snapshotHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var snap metrics.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("snapshot body is not valid JSON: %v", err)
	}
	if snap.Summaries[metrics.KindCacheHit].Count != 1 {
		t.Errorf("hit count = %d, want 1", snap.Summaries[metrics.KindCacheHit].Count)
	}
}

func TestStatsHandler(t *testing.T) {
	c, p, agg, _ := newTestStack(t)
	c.Put("k", "v", time.Minute)

	rec := httptest.NewRecorder()
	statsHandler(c, p, agg)(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var payload struct {
		Cache struct {
			Size     int `json:"size"`
			Capacity int `json:"capacity"`
		} `json:"cache"`
		Pool struct {
			CurrentSize int `json:"current_size"`
		} `json:"pool"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("stats body is not valid JSON: %v", err)
	}
	if payload.Cache.Size != 1 {
		t.Errorf("cache size = %d, want 1", payload.Cache.Size)
	}
	if payload.Cache.Capacity != 16 {
		t.Errorf("cache capacity = %d, want 16", payload.Cache.Capacity)
	}
	if payload.Pool.CurrentSize != 2 {
		t.Errorf("pool size = %d, want 2", payload.Pool.CurrentSize)
	}
}

func TestProxyHandler_CachesUpstream(t *testing.T) {
	_, _, _, executor := newTestStack(t)

	upstream := testutil.NewUpstream(`{"orders":[]}`)
	defer upstream.Close()

	cfg := transport.DefaultConfig()
	cfg.Logger = zerolog.New(io.Discard)
	invoker := transport.NewHTTPInvoker(cfg)

	handler := proxyHandler(executor, invoker, upstream.URL())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/proxy/orders", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, rec.Code, http.StatusOK)
		}
		if rec.Body.String() != `{"orders":[]}` {
			t.Fatalf("request %d body = %q", i, rec.Body.String())
		}
	}
	if got := upstream.Requests(); got != 1 {
		t.Errorf("upstream requests = %d, want 1 (responses must be cached)", got)
	}
}

func TestProxyHandler_UpstreamError(t *testing.T) {
	_, _, _, executor := newTestStack(t)

	upstream := testutil.NewUpstream("")
	defer upstream.Close()
	upstream.SetStatus(http.StatusNotFound)

	cfg := transport.DefaultConfig()
	cfg.Logger = zerolog.New(io.Discard)
	invoker := transport.NewHTTPInvoker(cfg)

	rec := httptest.NewRecorder()
	proxyHandler(executor, invoker, upstream.URL())(rec, httptest.NewRequest(http.MethodGet, "/proxy/missing", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PERFKIT_TEST_STR", "value")
	t.Setenv("PERFKIT_TEST_INT", "42")
	t.Setenv("PERFKIT_TEST_FLOAT", "0.25")
	t.Setenv("PERFKIT_TEST_BOOL", "true")
	t.Setenv("PERFKIT_TEST_DUR", "250ms")
	t.Setenv("PERFKIT_TEST_BAD", "not-a-number")

	if got := getEnv("PERFKIT_TEST_STR", "d"); got != "value" {
		t.Errorf("getEnv = %q, want %q", got, "value")
	}
	if got := getEnv("PERFKIT_TEST_UNSET", "d"); got != "d" {
		t.Errorf("getEnv fallback = %q, want %q", got, "d")
	}
	if got := getEnvInt("PERFKIT_TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}
	if got := getEnvInt("PERFKIT_TEST_BAD", 7); got != 7 {
		t.Errorf("getEnvInt invalid = %d, want fallback 7", got)
	}
	if got := getEnvFloat("PERFKIT_TEST_FLOAT", 0); got != 0.25 {
		t.Errorf("getEnvFloat = %v, want 0.25", got)
	}
	if got := getEnvBool("PERFKIT_TEST_BOOL", false); !got {
		t.Error("getEnvBool = false, want true")
	}
	if got := getEnvDuration("PERFKIT_TEST_DUR", 0); got != 250*time.Millisecond {
		t.Errorf("getEnvDuration = %v, want 250ms", got)
	}
}
