package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roadside"

var (
	MatchesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "nearby_queries_total", Help: "Total number of nearby provider queries"})
	MatchLatency  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "nearby_latency_seconds", Help: "Nearby provider query latency seconds"})
	NearbyResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "nearby_results",
		Help:      "Number of providers returned per nearby query",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "service_requests_created_total", Help: "Service requests created"})
	Transitions     = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "service_request_transitions_total", Help: "Status transition attempts by target status and outcome"},
		[]string{"status", "outcome"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Lifecycle notifications by notifier and outcome"},
		[]string{"notifier", "outcome"},
	)
	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ws_sessions", Help: "Connected websocket sessions"})

	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "resilience_results_total", Help: "Resilience cache results by source (live, stale, synthetic)"},
		[]string{"source"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
