package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"}, // Labels: model used, success/error kind
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_ai_retries_total",
			Help: "Total number of retried AI calls after rate-limit signals.",
		},
	)
	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_batch_items_total",
			Help: "Bulk upload items by outcome (processed, failed, skipped).",
		},
		[]string{"outcome"},
	)
	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portfolio_batch_duration_seconds",
			Help:    "Histogram of whole-batch processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)

// MetricsRecordAIRequest записывает исход одного вызова AI API.
func MetricsRecordAIRequest(model, status string, duration time.Duration) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "status": status}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": model}).Observe(duration.Seconds())
}

// MetricsIncrementAIRetry учитывает один ретрай после сигнала лимита.
func MetricsIncrementAIRetry() {
	aiRetriesTotal.Inc()
}

// MetricsAddBatchItems учитывает элементы пакета по исходу.
func MetricsAddBatchItems(outcome string, count int) {
	if count <= 0 {
		return
	}
	batchItemsTotal.With(prometheus.Labels{"outcome": outcome}).Add(float64(count))
}

// MetricsRecordBatchDuration записывает длительность целого пакета.
func MetricsRecordBatchDuration(d time.Duration) {
	batchDuration.Observe(d.Seconds())
}
