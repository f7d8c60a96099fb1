// Package metrics provides Prometheus metrics for easylock operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lock handle metrics
	LockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easylock_lock_operations_total",
			Help: "Total number of lock operations",
		},
		[]string{"operation", "status"}, // operation: "acquire", "release", "refresh"; status: "success", "contended", "failure"
	)

	LockOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easylock_lock_operation_duration_seconds",
			Help:    "Lock operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Active locks gauge
	ActiveLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "easylock_active_locks",
			Help: "Number of locks currently held by this process",
		},
	)

	// Process-with-lock outcomes
	ProcessWithLockTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easylock_process_with_lock_total",
			Help: "Total number of process-with-lock calls by outcome",
		},
		[]string{"outcome"}, // "processed", "skipped", "retry", "fatal", "error"
	)

	// Worker metrics
	WorkerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easylock_worker_runs_total",
			Help: "Total number of supervised job runs",
		},
		[]string{"job", "status"},
	)

	PrunedLocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "easylock_pruned_locks_total",
			Help: "Total number of expired lock records removed from the store",
		},
	)
)
