package pinger

import (
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// runsTotal counts invocations. status is "done" or the skip reason.
var runsTotal = promauto.With(metrics.Registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "pinger_runs_total",
		Help: "Total number of pinger invocations by trigger and status (done or skip reason)",
	},
	[]string{"trigger", "status"},
)
