package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	evaluationOutcomes    *prometheus.CounterVec
	evaluationDuration    prometheus.Histogram
	quotaRejectionsTotal  prometheus.Counter
	uploadRejectionsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stde_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stde_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 45.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stde_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stde_evaluation_outcomes_total",
			Help: "Evaluation attempts by outcome and failure kind.",
		}, []string{"outcome", "kind"})

		evaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stde_evaluation_duration_seconds",
			Help:    "End-to-end duration of evaluation runs that reached PROCESSING.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		})

		quotaRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stde_quota_rejections_total",
			Help: "Evaluation attempts rejected by the hourly quota.",
		})

		uploadRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stde_upload_rejections_total",
			Help: "Document uploads rejected by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			evaluationOutcomes,
			evaluationDuration,
			quotaRejectionsTotal,
			uploadRejectionsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EvaluationOutcomes counts evaluation results labelled completed, cached or failed.
func EvaluationOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationOutcomes
}

func EvaluationDuration() prometheus.Histogram {
	RegisterMetrics()
	return evaluationDuration
}

func QuotaRejections() prometheus.Counter {
	RegisterMetrics()
	return quotaRejectionsTotal
}

func UploadRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectionsTotal
}
