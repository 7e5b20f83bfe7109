// Package metrics holds the process-wide Prometheus collectors, exposed on
// /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookwise_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookwise_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookwise_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"route"},
	)

	// Recommendation pipeline
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookwise_recommendations_total",
			Help: "Completed recommendation runs by data path",
		},
		[]string{"path"}, // "local", "fallback"
	)

	RecommendationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookwise_recommendation_errors_total",
			Help: "Recommendation runs that failed or degraded, by stage",
		},
		[]string{"stage"}, // "gate", "catalog", "row_mapping", "search", "compose"
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookwise_recommendation_duration_seconds",
			Help:    "End-to-end recommendation pipeline duration",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	GateDistance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookwise_gate_distance",
			Help:    "Squared L2 distance of the nearest category per query",
			Buckets: []float64{0.2, 0.4, 0.6, 0.8, 1.0, 1.3, 1.6, 2.0, 3.0},
		},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookwise_llm_call_duration_seconds",
			Help:    "Language model call duration by purpose",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"purpose"}, // "keyword", "compose", "embed"
	)

	CategoryIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookwise_category_index_entries",
			Help: "Number of categories in the loaded index",
		},
	)

	HistoryPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookwise_history_pruned_total",
			Help: "Recommendation history rows deleted by retention",
		},
	)

	// External search
	ExternalSearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookwise_external_search_results",
			Help:    "Items returned per external book search",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookwise_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookwise_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookwise_circuit_breaker_consecutive_failures",
			Help: "Current consecutive failures in circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookwise_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordRecommendation(path string, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(path).Inc()
	RecommendationDuration.Observe(duration.Seconds())
}

func RecordLLMCall(purpose string, start time.Time) {
	LLMCallDuration.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
}
