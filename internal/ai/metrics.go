package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapter_server_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"provider", "model", "operation", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chapter_server_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120, 180},
		},
		[]string{"provider", "model", "operation"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chapter_server_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"provider", "model", "operation"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chapter_server_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(400, 400, 20),
		},
		[]string{"provider", "model", "operation"},
	)
)

func observeFailure(provider, model, operation, status string) {
	aiRequestsTotal.With(prometheus.Labels{
		"provider": provider, "model": model, "operation": operation, "status": status,
	}).Inc()
}

func observeSuccess(provider, model, operation string, elapsed time.Duration, usage UsageInfo) {
	labels := prometheus.Labels{"provider": provider, "model": model, "operation": operation}
	aiRequestsTotal.With(prometheus.Labels{
		"provider": provider, "model": model, "operation": operation, "status": "success",
	}).Inc()
	aiRequestDuration.With(labels).Observe(elapsed.Seconds())
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(labels).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(labels).Observe(float64(usage.CompletionTokens))
	}
}
