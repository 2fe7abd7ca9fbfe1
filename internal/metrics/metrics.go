package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "usmred"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Handled HTTP requests by route and status."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency by route.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Requests let through by the limiter."},
		[]string{"scope"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Requests rejected by the limiter."},
		[]string{"scope"},
	)
	WorkspacesOpened = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "workspaces_opened_total", Help: "Device workspaces built."},
	)
	WorkspacesEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "workspaces_evicted_total", Help: "Device workspaces closed after eviction."},
	)
	TasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "tasks_processed_total", Help: "Background tasks handled by type and result."},
		[]string{"type", "result"},
	)
	OrphansRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "storage_orphans_removed_total", Help: "Orphaned objects removed by the sweep."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequests,
		HTTPDuration,
		RateLimitAllowed,
		RateLimitRejected,
		WorkspacesOpened,
		WorkspacesEvicted,
		TasksProcessed,
		OrphansRemoved,
	)
}
