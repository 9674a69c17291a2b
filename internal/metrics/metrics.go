package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"route", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "velvet_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "outcome"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_generation_attempts_total",
			Help: "Upstream generation calls, including retries",
		},
		[]string{"output_type", "model"},
	)

	RateLimitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_rate_limit_retries_total",
			Help: "Retries scheduled after an upstream rate limit response",
		},
		[]string{"model"},
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_guard_rejections_total",
			Help: "Orchestrator runs rejected before any network call",
		},
		[]string{"reason"},
	)

	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_orchestration_outcomes_total",
			Help: "Final orchestration outcomes by error kind (ok on success)",
		},
		[]string{"outcome", "output_type"},
	)

	CreditsDebited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_credits_debited_total",
			Help: "Demo credits debited after successful generations",
		},
		[]string{"output_type"},
	)

	AnalysisFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_analysis_fallbacks_total",
			Help: "Stage A results produced by the fixed template",
		},
		[]string{"reason"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "velvet_analysis_cache_hits_total",
			Help: "Total number of analysis cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "velvet_analysis_cache_misses_total",
			Help: "Total number of analysis cache misses",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "velvet_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ClientRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velvet_client_rate_limit_hits_total",
			Help: "Requests rejected by the per-client limiter",
		},
		[]string{"route"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "velvet_active_sessions",
			Help: "Number of live orchestration sessions",
		},
	)

	InstanceInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "velvet_instance_info",
			Help: "Instance information (always 1)",
		},
		[]string{"version"},
	)
)

func RecordRequest(route, status string) {
	RequestsTotal.WithLabelValues(route, status).Inc()
}

func RecordStage(stage, outcome string, durationSec float64) {
	StageDuration.WithLabelValues(stage, outcome).Observe(durationSec)
}

func RecordGenerationAttempt(outputType, model string) {
	GenerationAttempts.WithLabelValues(outputType, model).Inc()
}

func RecordRateLimitRetry(model string) {
	RateLimitRetries.WithLabelValues(model).Inc()
}

func RecordGuardRejection(reason string) {
	GuardRejections.WithLabelValues(reason).Inc()
}

func RecordOutcome(outcome, outputType string) {
	Outcomes.WithLabelValues(outcome, outputType).Inc()
}

func RecordCreditsDebited(outputType string, credits int) {
	CreditsDebited.WithLabelValues(outputType).Add(float64(credits))
}

func RecordAnalysisFallback(reason string) {
	AnalysisFallbacks.WithLabelValues(reason).Inc()
}

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordClientRateLimitHit(route string) {
	ClientRateLimitHits.WithLabelValues(route).Inc()
}

func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}

func InitInstanceMetrics(version string) {
	InstanceInfo.WithLabelValues(version).Set(1)
}
