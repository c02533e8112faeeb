package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chapterTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chapter_server_chapter_transitions_total",
		Help: "Chapter state transitions by resulting state.",
	}, []string{"state"})

	chapterRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chapter_server_chapter_rejections_total",
		Help: "Rejected chapter generation requests by reason.",
	}, []string{"reason"})

	chapterGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chapter_server_chapter_generation_duration_seconds",
		Help:    "Duration of chapter script generation attempts.",
		Buckets: []float64{1, 5, 15, 30, 60, 90, 120, 180, 240},
	}, []string{"outcome"})

	staleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapter_server_stale_responses_total",
		Help: "Generation responses discarded because their attempt was no longer current.",
	})
)
