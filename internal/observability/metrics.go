// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// Source metrics
	TransactionsReceived prometheus.Counter
	BlockMetaReceived    prometheus.Counter
	SourceErrors         *prometheus.CounterVec

	// Parser metrics
	EventsParsed         *prometheus.CounterVec
	EnvelopeDecodeErrors prometheus.Counter

	// Queue metrics
	QueueDepth   prometheus.Gauge
	QueueDropped prometheus.Counter

	// Persistence metrics
	EventsPersisted    prometheus.Counter
	BatchFlushes       prometheus.Counter
	BatchFlushFailures prometheus.Counter
	FlushDuration      prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered
// on the given registerer. Pass prometheus.DefaultRegisterer for the
// process-wide registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_defi_indexer"
	}
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "transactions_received_total",
			Help:      "Total number of transaction events received from the source",
		}),
		BlockMetaReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "block_meta_received_total",
			Help:      "Total number of block meta events received from the source",
		}),
		SourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "errors_total",
			Help:      "Total number of source read errors by kind",
		}, []string{"kind"}),

		EventsParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "events_parsed_total",
			Help:      "Total number of events extracted by parser",
		}, []string{"parser"}),
		EnvelopeDecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "envelope_decode_errors_total",
			Help:      "Total number of transaction envelopes that failed to decode",
		}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Current number of events waiting in the persistence queue",
		}),
		QueueDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_dropped_total",
			Help:      "Total number of events dropped because the queue was full",
		}),

		EventsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "events_persisted_total",
			Help:      "Total number of events written to storage",
		}),
		BatchFlushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "batch_flushes_total",
			Help:      "Total number of batch flushes",
		}),
		BatchFlushFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "batch_flush_failures_total",
			Help:      "Total number of failed batch flushes",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "flush_duration_seconds",
			Help:      "Batch flush duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// NewUnregisteredMetrics returns a Metrics instance backed by a private
// registry. Used by tests and by components built without a shared
// registry, where registering on the global one would collide.
func NewUnregisteredMetrics() *Metrics {
	return NewMetrics("", prometheus.NewRegistry())
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
