package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodanalyzer_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foodanalyzer_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	SummaryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodanalyzer_summary_cache_hits_total",
			Help: "Total number of summary cache hits",
		},
	)

	SummaryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodanalyzer_summary_cache_misses_total",
			Help: "Total number of summary cache misses",
		},
	)

	GenerationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodanalyzer_generation_errors_total",
			Help: "Total number of generation failures",
		},
		[]string{"provider"},
	)

	GenerationCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodanalyzer_generation_cost_usd_total",
			Help: "Estimated generation cost in USD",
		},
		[]string{"provider", "model"},
	)

	ProductsNotFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodanalyzer_products_not_found_total",
			Help: "Requests aborted because the product record was missing or incomplete",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodanalyzer_rate_limit_hits_total",
			Help: "Total number of rate limited requests",
		},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foodanalyzer_active_streams",
			Help: "Number of response streams currently open",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "foodanalyzer_circuit_breaker_state",
			Help: "Circuit breaker state per generation backend (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)
)

func RecordRequest(endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(durationSec)
}

func RecordCacheHit()  { SummaryCacheHits.Inc() }
func RecordCacheMiss() { SummaryCacheMisses.Inc() }

func RecordGenerationError(provider string) {
	GenerationErrors.WithLabelValues(provider).Inc()
}

func RecordGenerationCost(provider, model string, costUSD float64) {
	GenerationCost.WithLabelValues(provider, model).Add(costUSD)
}

func SetCircuitBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
