package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "competisearch",
			Name:      "search_requests_total",
			Help:      "Total number of competitor search requests",
		},
		[]string{"status"}, // "success" / "fail"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "competisearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end competitor search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	RouteSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "competisearch",
			Name:      "route_search_duration_seconds",
			Help:      "Per-route hybrid index query duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"field"},
	)

	RouteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "competisearch",
			Name:      "route_errors_total",
			Help:      "Total number of dropped (failed) retrieval routes",
		},
		[]string{"field"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "competisearch",
			Name:      "cache_total",
			Help:      "Cache hits and misses per cache",
		},
		[]string{"cache", "result"}, // cache: "response"/"route"/"catalog"/"freshness", result: "hit"/"miss"
	)

	RerankCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "competisearch",
			Name:      "rerank_candidates_total",
			Help:      "Rerank candidates kept vs dropped by the relevance threshold",
		},
		[]string{"outcome"}, // "kept" / "dropped"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search pipeline metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(RouteSearchDuration)
	prometheus.MustRegister(RouteErrorsTotal)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(RerankCandidatesTotal)
	searchMetricsRegistered = true
}
