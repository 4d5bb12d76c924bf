package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketwatch_upstream_requests_total",
			Help: "Cinema API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, error, breaker_open
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketwatch_upstream_request_duration_seconds",
			Help:    "Cinema API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ScreeningCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketwatch_screening_cache_total",
			Help: "Screening lookups served from the run cache (hit) or upstream (miss)",
		},
		[]string{"result"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketwatch_runs_total",
			Help: "Matching runs by terminal state",
		},
		[]string{"state"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketwatch_run_duration_seconds",
			Help:    "Wall time of a matching run",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketwatch_notifications_total",
			Help: "Notification sends by outcome",
		},
		[]string{"outcome"},
	)

	AlertsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketwatch_alerts_unresolved_total",
			Help: "By-name alerts dropped because no catalog entry matched",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
