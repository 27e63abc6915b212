package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query orchestration Prometheus metrics.
var (
	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingpage",
			Name:      "query_requests_total",
			Help:      "Total number of backend query requests",
		},
		[]string{"query", "status"},
	)

	QueryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "listingpage",
			Name:      "query_request_duration_seconds",
			Help:      "Backend query duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"query"},
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingpage",
			Name:      "query_cache_total",
			Help:      "Query response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)

	StaleResponsesDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingpage",
			Name:      "stale_responses_discarded_total",
			Help:      "Responses dropped because their fetcher moved to a newer request",
		},
		[]string{"fetcher"},
	)

	DecodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingpage",
			Name:      "decode_failures_total",
			Help:      "Responses missing expected fields, rendered as empty data",
		},
		[]string{"fetcher"},
	)

	StaleServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingpage",
			Name:      "stale_served_total",
			Help:      "Renders that fell back to the last non-empty value while loading",
		},
		[]string{"kind"},
	)

	ModeTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listingpage",
			Name:      "fetch_mode_transitions_total",
			Help:      "Fetch strategy changes per page",
		},
		[]string{"from", "to"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "listingpage",
			Name:      "active_sessions",
			Help:      "Live page sessions",
		},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers query orchestration metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryRequestsTotal)
	prometheus.MustRegister(QueryRequestDuration)
	prometheus.MustRegister(QueryCacheTotal)
	prometheus.MustRegister(StaleResponsesDiscardedTotal)
	prometheus.MustRegister(DecodeFailuresTotal)
	prometheus.MustRegister(StaleServedTotal)
	prometheus.MustRegister(ModeTransitionsTotal)
	prometheus.MustRegister(ActiveSessions)
	queryMetricsRegistered = true
}
