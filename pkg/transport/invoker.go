// Package transport adapts an upstream HTTP API to the invoke(request) ->
// response | error collaborator the resource layer composes work units
// around. It carries connection pooling, error classification, and
// bounded retries; the resource layer itself never speaks HTTP.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream invocations.
var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfkit_transport_requests_total",
		Help: "Total upstream requests by status class",
	}, []string{"status"})

	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perfkit_transport_request_duration_seconds",
		Help:    "Upstream request duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})
)

// Request describes one upstream invocation.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Fingerprint derives the deterministic cache key for the request's
// identity: method, URL, and sorted query parameters.
func (r Request) Fingerprint() string {
	parts := []string{strings.ToUpper(r.Method), r.URL}

	if len(r.Query) > 0 {
		keys := make([]string, 0, len(r.Query))
		for key := range r.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, r.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

// Response is the upstream's answer to a successful invocation.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Invoker performs one upstream invocation. Implementations must be safe
// for concurrent use by pool workers.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Config holds HTTP invoker configuration.
type Config struct {
	// Timeout bounds one attempt end to end.
	Timeout time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost tune the connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// UserAgent is sent with every request when non-empty.
	UserAgent string

	// Retry is the backoff policy for retriable failures.
	Retry RetryConfig

	// Logger for transport events.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		Retry:               DefaultRetryConfig(),
	}
}

// HTTPInvoker is the net/http implementation of Invoker.
type HTTPInvoker struct {
	client *http.Client
	cfg    Config
	logger zerolog.Logger
}

// NewHTTPInvoker creates an invoker with a tuned connection pool.
func NewHTTPInvoker(cfg Config) *HTTPInvoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost

	return &HTTPInvoker{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Invoke performs the request with classification and bounded retries.
// 4xx and 5xx responses are returned as *InvokeError; retries apply only
// to server and network failures.
func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	defer func() {
		invocationDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	var resp *Response
	err := retryWithBackoff(ctx, h.cfg.Retry, h.logger, func() error {
		var attemptErr error
		resp, attemptErr = h.attempt(ctx, method, req)
		return attemptErr
	}, func(err error) ErrorClass {
		if invokeErr, ok := err.(*InvokeError); ok {
			return invokeErr.Class
		}
		return ErrorClassNetwork
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt performs one HTTP round trip.
func (h *HTTPInvoker) attempt(ctx context.Context, method string, req Request) (*Response, error) {
	target := req.URL
	if len(req.Query) > 0 {
		target = target + "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if h.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", h.cfg.UserAgent)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		invocationsTotal.WithLabelValues("network_error").Inc()
		h.logger.Warn().Err(err).Str("url", req.URL).Msg("Upstream request failed")
		return nil, &InvokeError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		invocationsTotal.WithLabelValues("network_error").Inc()
		return nil, &InvokeError{Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	invocationsTotal.WithLabelValues(fmt.Sprintf("%d", httpResp.StatusCode)).Inc()

	if httpResp.StatusCode >= 400 {
		class := classify(httpResp.StatusCode, nil)
		h.logger.Warn().
			Str("url", req.URL).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream error response")
		return nil, &InvokeError{
			StatusCode: httpResp.StatusCode,
			Class:      class,
			Message:    httpResp.Status,
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, nil
}
