// Package metrics declares the prometheus collectors of the notebook server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EditRequests counts edit requests by the status answered.
	EditRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_edit_requests_total",
		Help: "Total edit requests by answered status",
	}, []string{"status"})

	// LinkOperations counts applied link association changes by kind and mode.
	LinkOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_link_operations_total",
		Help: "Total link association changes by operation and reconciliation mode",
	}, []string{"op", "mode"})

	// Revisions counts committed revisions by action.
	Revisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_revisions_total",
		Help: "Total committed revisions by action",
	}, []string{"action"})

	// CommitFailures counts rolled back edit transactions by operation.
	CommitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_commit_failures_total",
		Help: "Total rolled back edit transactions by operation",
	}, []string{"operation"})

	// ReleasedLocks counts locks dropped by session release or record deletion.
	ReleasedLocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_released_locks_total",
		Help: "Total edit locks released without save or cancel, by reason",
	}, []string{"reason"})

	// RequestDuration tracks HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebook_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"method", "route", "code"})
)
