package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirrors of the aggregator's sample stream. The ring buffers are
// the source of truth for rolling summaries; these exist for external
// scraping and dashboards.
var (
	samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfkit_samples_total",
		Help: "Total outcome samples recorded by kind",
	}, []string{"kind"})

	sampleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perfkit_sample_duration_seconds",
		Help:    "Observed operation duration by sample kind",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"kind"})

	slowSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfkit_slow_samples_total",
		Help: "Total samples exceeding the slow-operation threshold by kind",
	}, []string{"kind"})
)
