package kv

import (
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backend names used as metric labels.
const (
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

var (
	// StoreErrors tracks store operation errors by backend and operation.
	StoreErrors = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinger_kv_errors_total",
			Help: "Total number of key-value store operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "setnx", "ping"
	)
)
