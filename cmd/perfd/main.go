// Command perfd runs the adaptive resource layer as a small caching proxy
// in front of an upstream HTTP API. Requests under /proxy/ are fetched
// through the cache, deduplicated against in-flight work, and executed on
// the adaptive worker pool.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BryanMarcialC/perfkit/pkg/cache"
	"github.com/BryanMarcialC/perfkit/pkg/codec"
	"github.com/BryanMarcialC/perfkit/pkg/exec"
	"github.com/BryanMarcialC/perfkit/pkg/logging"
	"github.com/BryanMarcialC/perfkit/pkg/metrics"
	"github.com/BryanMarcialC/perfkit/pkg/pool"
	"github.com/BryanMarcialC/perfkit/pkg/probe"
	"github.com/BryanMarcialC/perfkit/pkg/transport"
)

func main() {
	// Configuration from environment
	listenAddr := getEnv("PERFKIT_LISTEN_ADDR", ":8080")
	upstreamURL := getEnv("PERFKIT_UPSTREAM_URL", "")
	userAgent := getEnv("PERFKIT_USER_AGENT", "perfd/0.1.0")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("PERFKIT_LOG_LEVEL", "info")),
		Pretty: getEnvBool("PERFKIT_LOG_PRETTY", false),
	})

	agg, err := metrics.New(metrics.Config{
		WindowSize:    getEnvInt("PERFKIT_METRICS_WINDOW", metrics.DefaultWindowSize),
		SlowThreshold: getEnvDuration("PERFKIT_METRICS_SLOW_THRESHOLD", time.Second),
		SlowLogSize:   metrics.DefaultSlowLogSize,
		Logger:        logging.NewLogger("aggregator"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create aggregator")
	}

	c, err := cache.New(cache.Config{
		Capacity:      getEnvInt("PERFKIT_CACHE_CAPACITY", 256),
		DefaultTTL:    getEnvDuration("PERFKIT_CACHE_TTL", 10*time.Minute),
		SweepInterval: getEnvDuration("PERFKIT_CACHE_SWEEP_INTERVAL", time.Minute),
		Recorder:      agg,
		Logger:        logging.NewLogger("cache"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache")
	}
	c.Start()

	p, err := pool.New(pool.Config{
		MinWorkers:     getEnvInt("PERFKIT_POOL_MIN_WORKERS", 2),
		MaxWorkers:     getEnvInt("PERFKIT_POOL_MAX_WORKERS", 16),
		QueueCapacity:  getEnvInt("PERFKIT_POOL_QUEUE_CAPACITY", 128),
		EnqueueWait:    getEnvDuration("PERFKIT_POOL_ENQUEUE_WAIT", 100*time.Millisecond),
		ResizeInterval: getEnvDuration("PERFKIT_POOL_RESIZE_INTERVAL", pool.DefaultResizeInterval),
		CPUHighWater:   getEnvFloat("PERFKIT_POOL_CPU_HIGH_WATER", pool.DefaultCPUHighWater),
		CPUOverload:    getEnvFloat("PERFKIT_POOL_CPU_OVERLOAD", pool.DefaultCPUOverload),
		FailureRateMax: getEnvFloat("PERFKIT_POOL_FAILURE_RATE_MAX", pool.DefaultFailureRateMax),
		FailureWindow:  getEnvInt("PERFKIT_POOL_FAILURE_WINDOW", pool.DefaultFailureWindow),
		Probe:          probe.NewSystemProbe(logging.NewLogger("probe")),
		Observer:       agg,
		Logger:         logging.NewLogger("pool"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create pool")
	}
	p.Start()

	executor, err := exec.New(exec.Config{
		Cache:      c,
		Pool:       p,
		DefaultTTL: getEnvDuration("PERFKIT_CACHE_TTL", 10*time.Minute),
		Logger:     logging.NewLogger("executor"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create executor")
	}

	invokerCfg := transport.DefaultConfig()
	invokerCfg.Timeout = getEnvDuration("PERFKIT_UPSTREAM_TIMEOUT", 30*time.Second)
	invokerCfg.UserAgent = userAgent
	invokerCfg.Logger = logging.NewLogger("transport")
	invoker := transport.NewHTTPInvoker(invokerCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/snapshot", snapshotHandler(agg))
	mux.HandleFunc("/stats", statsHandler(c, p, agg))
	if upstreamURL != "" {
		mux.HandleFunc("/proxy/", proxyHandler(executor, invoker, upstreamURL))
		logger.Info().Str("upstream", upstreamURL).Msg("Proxying /proxy/ to upstream")
	} else {
		logger.Warn().Msg("PERFKIT_UPSTREAM_URL not set, /proxy/ disabled")
	}

	server := &http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", listenAddr).Msg("Starting perfd")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	drainWait := getEnvDuration("PERFKIT_POOL_DRAIN_WAIT", pool.DefaultDrainWait)
	if err := p.Shutdown(drainWait); err != nil {
		logger.Error().Err(err).Msg("Pool drain incomplete")
	}
	c.Stop()

	logger.Info().Msg("Shutdown complete")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// snapshotHandler serves the aggregator's JSON snapshot.
func snapshotHandler(agg *metrics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := agg.MarshalSnapshot()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// statsHandler reports cache and pool health in one place.
func statsHandler(c *cache.Cache, p *pool.Pool, agg *metrics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cacheStats := c.Stats()
		poolState := p.State()

		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]any{
			"cache": map[string]any{
				"size":     cacheStats.Size,
				"capacity": cacheStats.Capacity,
				"hit_rate": cacheStats.HitRate,
			},
			"pool": map[string]any{
				"current_size": poolState.CurrentSize,
				"target_size":  poolState.TargetSize,
				"queue_depth":  p.QueueDepth(),
			},
			"failure_rate": agg.FailureRate(0),
		})
	}
}

// proxyHandler fetches upstream responses through the cached executor.
func proxyHandler(executor *exec.Executor, invoker transport.Invoker, upstream string) http.HandlerFunc {
	base := strings.TrimRight(upstream, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, "/proxy")
		req := transport.Request{
			Method: http.MethodGet,
			URL:    base + endpoint,
			Query:  r.URL.Query(),
		}

		value, err := executor.Do(r.Context(), req.Fingerprint(), 0, func(ctx context.Context) (any, error) {
			return invoker.Invoke(ctx, req)
		})
		if err != nil {
			switch {
			case errors.Is(err, pool.ErrSaturated):
				http.Error(w, "server busy", http.StatusServiceUnavailable)
			case errors.Is(err, pool.ErrCancelled):
				http.Error(w, "request cancelled", http.StatusRequestTimeout)
			default:
				http.Error(w, err.Error(), http.StatusBadGateway)
			}
			return
		}

		resp := value.(*transport.Response)
		for key, values := range resp.Header {
			for _, v := range values {
				w.Header().Add(key, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.Body)
	}
}

var jsonCodec = codec.Fast{}

func writeJSON(w http.ResponseWriter, payload map[string]any) {
	data, err := jsonCodec.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// getEnv returns the environment value or a default.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
