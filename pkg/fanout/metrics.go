package fanout

import (
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PingsTotal counts ping outcomes by class.
	PingsTotal = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinger_pings_total",
			Help: "Total number of endpoint pings by outcome class",
		},
		[]string{"class"},
	)

	// PingDuration observes per-endpoint latency up to response headers.
	PingDuration = promauto.With(metrics.Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pinger_ping_duration_seconds",
			Help:    "Endpoint ping latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)
