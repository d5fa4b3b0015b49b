package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "attempts_total",
		Help:      "Total authentication attempts by outcome",
	}, []string{"outcome"})

	IdentitiesEnrolled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "identities_enrolled_total",
		Help:      "Total identities enrolled into the gallery",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	ProviderReady = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "provider_ready",
		Help:      "1 when the embedding provider is initialized and usable",
	})

	GallerySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "gallery_size",
		Help:      "Number of enrolled identities scanned on the last match",
	})

	LedgerWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "ledger_write_failures_total",
		Help:      "Attempt ledger writes that failed (decision still returned)",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
