package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	eventsPublishedTotal *prometheus.CounterVec
	summaryCacheTotal    *prometheus.CounterVec
	setsCompletedTotal   prometheus.Counter
	evaluatorUp          prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gema_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 30.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_events_published_total",
			Help: "Evaluation events published per transport.",
		}, []string{"type", "transport", "result"})

		summaryCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_summary_cache_total",
			Help: "Interview summary cache lookups by result.",
		}, []string{"result"})

		setsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gema_interview_sets_completed_total",
			Help: "Interview sets that received a comprehensive evaluation.",
		})

		evaluatorUp = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gema_evaluator_configured",
			Help: "1 when a model evaluator is configured, 0 when evaluation routes are disabled.",
		})

		prometheus.MustRegister(apiRequestsTotal, apiLatencySeconds, apiErrorsTotal, eventsPublishedTotal, summaryCacheTotal, setsCompletedTotal, evaluatorUp)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EventsPublished counts evaluation events by type, transport and result.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}

// SummaryCache counts summary cache hits and misses.
func SummaryCache() *prometheus.CounterVec {
	RegisterMetrics()
	return summaryCacheTotal
}

// SetsCompleted counts completed interview sets.
func SetsCompleted() prometheus.Counter {
	RegisterMetrics()
	return setsCompletedTotal
}
