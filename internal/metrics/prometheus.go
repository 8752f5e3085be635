package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviq_pipeline_duration_seconds",
			Help:    "Batch scoring run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"strategy"},
	)

	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviq_pipeline_runs_total",
			Help: "Total batch scoring runs",
		},
		[]string{"strategy", "status"},
	)

	PatientsScored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reviq_patients_scored_total",
			Help: "Total patients scored across batch runs",
		},
	)

	AdherenceScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviq_adherence_score",
			Help:    "Distribution of computed adherence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviq_predictions_total",
			Help: "Total single-record predictions",
		},
		[]string{"status"},
	)

	PredictionNeighbors = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviq_prediction_neighbors",
			Help:    "Neighbors found per lookup prediction",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviq_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviq_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	IngestRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviq_ingest_rows_total",
			Help: "Total rows ingested per table",
		},
		[]string{"table"},
	)
)

func Init() {
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(PipelineRuns)
	prometheus.MustRegister(PatientsScored)
	prometheus.MustRegister(AdherenceScores)
	prometheus.MustRegister(Predictions)
	prometheus.MustRegister(PredictionNeighbors)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(IngestRows)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
