// Package metrics provides the Prometheus registry and shared metrics for the pinger.
// Component metrics live in their own packages (fanout, ratelimit, kv, detector, pinger)
// and register themselves with Registry via promauto.With.
//
// This package documents the full metric catalogue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is where every pinger metric is registered.
var Registry prometheus.Registerer = prometheus.DefaultRegisterer

// Gatherer is what GET /metrics exposes. It must gather from Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Sources of best-effort failures that are logged and counted but never propagated.
const (
	SourceDetector  = "detector"
	SourceBodyRead  = "body_read"
	SourcePersist   = "persist"
	SourceRequest   = "request_body"
	SourceEndpoints = "endpoint_list"
)

// SwallowedErrors counts failures deliberately turned into no-ops.
var SwallowedErrors = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "pinger_swallowed_errors_total",
		Help: "Total number of best-effort failures logged and ignored, by source",
	},
	[]string{"source"},
)

// Metrics Documentation
//
// Fan-out Metrics (pkg/fanout):
//   - pinger_pings_total{class} (Counter): Ping outcomes by class (ok, redirect, client, server, timeout, network, deadline)
//   - pinger_ping_duration_seconds (Histogram): Per-endpoint latency up to response headers
//
// Gate Metrics (pkg/ratelimit):
//   - pinger_lock_acquired_total (Counter): Real runs that acquired the hourly lock
//   - pinger_lock_contended_total (Counter): Real runs refused because the lock was held
//   - pinger_change_skips_total (Counter): Scheduled runs skipped because nothing changed
//
// Store Metrics (pkg/kv):
//   - pinger_kv_errors_total{backend, operation} (Counter): Store operation errors
//
// Detector Metrics (pkg/detector):
//   - pinger_detector_retries_total{error_class} (Counter): Detector API retries (rate_limit, server, network)
//   - pinger_detector_retry_exhausted_total{error_class} (Counter): Detector API calls that failed after all attempts
//
// Run Metrics (pkg/pinger):
//   - pinger_runs_total{trigger, status} (Counter): Invocations by trigger (manual, scheduled) and status
//   - pinger_swallowed_errors_total{source} (Counter): Best-effort failures by source
//
// Example Prometheus Queries:
//
//   # Endpoint failure ratio
//   sum(rate(pinger_pings_total{class!="ok"}[1h])) / sum(rate(pinger_pings_total[1h]))
//
//   # Lock contention
//   increase(pinger_lock_contended_total[1d])
//
//   # P95 ping latency
//   histogram_quantile(0.95, rate(pinger_ping_duration_seconds_bucket[1h]))
