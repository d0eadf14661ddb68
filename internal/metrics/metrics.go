// Package metrics declares the Prometheus collectors of the watcher. They
// are registered on the default registry and served by the status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "twitch_watcher"

// Poll loop metrics
var (
	// PollCyclesTotal counts completed poll cycles.
	PollCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Total completed poll cycles",
		},
	)

	// PollCycleDuration tracks how long one pass over all tracked users takes.
	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of one poll cycle in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// TransitionsTotal counts offline to live transitions per user.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total offline to live transitions by user",
		},
		[]string{"user"},
	)

	// FetchErrorsTotal counts failed stream state fetches per user.
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total failed stream state fetches by user",
		},
		[]string{"user"},
	)

	// TrackedUsers is the number of users being polled.
	TrackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_users",
			Help:      "Number of tracked users",
		},
	)

	// LiveUsers is the number of tracked users currently live.
	LiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_users",
			Help:      "Number of tracked users currently live",
		},
	)
)

// Helix metrics
var (
	// HelixRequestsTotal counts Helix API calls by endpoint and outcome.
	HelixRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "helix_requests_total",
			Help:      "Total Helix API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// HelixRequestDuration tracks Helix API latency.
	HelixRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "helix_request_duration_seconds",
			Help:      "Helix API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// Notification metrics
var (
	// NotificationsTotal counts notifier sends by notifier and result
	// (success/error).
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total notifications by notifier and result",
		},
		[]string{"notifier", "result"},
	)
)
