package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/cache/redis"
	"github.com/reviq/backend/internal/encoding"
	"github.com/reviq/backend/internal/metrics"
	"github.com/reviq/backend/internal/scoring"
	"github.com/reviq/backend/internal/storage"
	"github.com/reviq/backend/internal/storage/models"
	"github.com/reviq/backend/internal/storage/sqlite"
	"github.com/reviq/backend/internal/vector/milvus"
	"github.com/reviq/backend/pkg/logger"
)

// Pipeline orchestrates one batch scoring run: validate input schemas, read
// the tables, run a strategy, replace the scored table, persist the encoding
// artifact, index patient vectors for the lookup predictor, and invalidate
// the cache. All I/O sits here; the strategy itself is a pure transform.
type Pipeline struct {
	db         *sqlite.Client
	cache      *redis.Client
	vectors    *milvus.Client
	strategies map[string]scoring.Strategy
	onComplete []func()
}

// RunSummary describes one completed batch run.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Strategy   string `json:"strategy"`
	Patients   int    `json:"patients"`
	Events     int    `json:"events"`
	DurationMS int    `json:"duration_ms"`
}

// Progress receives stage notifications during a run; stage counts refer to
// patients where known, 0 otherwise. May be nil.
type Progress func(stage string, count int)

func New(db *sqlite.Client, cache *redis.Client, vectors *milvus.Client, strategies ...scoring.Strategy) *Pipeline {
	byName := make(map[string]scoring.Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &Pipeline{db: db, cache: cache, vectors: vectors, strategies: byName}
}

// OnRunComplete registers a hook invoked after every successful run, e.g.
// to drop the predictor's cached encoding artifact.
func (p *Pipeline) OnRunComplete(fn func()) {
	p.onComplete = append(p.onComplete, fn)
}

// Strategies lists the registered strategy names.
func (p *Pipeline) Strategies() []string {
	names := make([]string, 0, len(p.strategies))
	for name := range p.strategies {
		names = append(names, name)
	}
	return names
}

func (p *Pipeline) Run(ctx context.Context, strategyName string, progress Progress) (*RunSummary, error) {
	strategy, ok := p.strategies[strategyName]
	if !ok {
		return nil, fmt.Errorf("unknown scoring strategy %q", strategyName)
	}

	start := time.Now()
	runID := uuid.New().String()
	notify := func(stage string, count int) {
		if progress != nil {
			progress(stage, count)
		}
	}

	logger.Info("Starting batch scoring run",
		zap.String("run_id", runID),
		zap.String("strategy", strategyName),
	)

	notify("validating", 0)
	if err := p.validateInputs(strategyName); err != nil {
		metrics.PipelineRuns.WithLabelValues(strategyName, "error").Inc()
		return nil, err
	}

	notify("reading", 0)
	in, err := p.readInput(strategyName)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(strategyName, "error").Inc()
		return nil, err
	}

	notify("scoring", len(in.Patients))
	scores, err := strategy.Score(*in)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(strategyName, "error").Inc()
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	notify("writing", len(scores))
	if err := p.db.ReplacePatientMatrix(scores); err != nil {
		metrics.PipelineRuns.WithLabelValues(strategyName, "error").Inc()
		return nil, err
	}

	schema := encoding.Fit(in.Patients)
	if err := p.db.SaveEncodingSchema(schema); err != nil {
		metrics.PipelineRuns.WithLabelValues(strategyName, "error").Inc()
		return nil, err
	}

	notify("indexing", len(scores))
	if err := p.indexVectors(ctx, schema, scores); err != nil {
		// The scored table is already durable; a stale lookup space is
		// reported but does not fail the run.
		logger.Warn("Failed to index patient vectors", zap.Error(err))
	}

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx); err != nil {
			logger.Warn("Failed to invalidate score cache", zap.Error(err))
		}
	}

	duration := int(time.Since(start).Milliseconds())
	run := &models.ScoreRun{
		ID:           runID,
		Strategy:     strategyName,
		PatientCount: len(in.Patients),
		EventCount:   len(in.Events),
		DurationMS:   duration,
		CreatedAt:    time.Now(),
	}
	if err := p.db.InsertScoreRun(run); err != nil {
		logger.Warn("Failed to record score run", zap.Error(err))
	}

	metrics.PipelineRuns.WithLabelValues(strategyName, "success").Inc()
	metrics.PipelineDuration.WithLabelValues(strategyName).Observe(time.Since(start).Seconds())
	metrics.PatientsScored.Add(float64(len(scores)))
	for i := range scores {
		if !math.IsNaN(scores[i].Scores.Adherence) {
			metrics.AdherenceScores.Observe(scores[i].Scores.Adherence)
		}
	}

	for _, fn := range p.onComplete {
		fn()
	}

	logger.Info("Batch scoring run complete",
		zap.String("run_id", runID),
		zap.Int("patients", len(in.Patients)),
		zap.Int("events", len(in.Events)),
		zap.Int("duration_ms", duration),
	)

	return &RunSummary{
		RunID:      runID,
		Strategy:   strategyName,
		Patients:   len(in.Patients),
		Events:     len(in.Events),
		DurationMS: duration,
	}, nil
}

func (p *Pipeline) validateInputs(strategyName string) error {
	if err := p.db.ValidateTable("patient_dtl", storage.PatientColumns); err != nil {
		return err
	}
	if err := p.db.ValidateTable("activity_log", storage.ActivityColumns); err != nil {
		return err
	}
	if strategyName == "lookup" {
		if err := p.db.ValidateTable("income_range_grade", storage.IncomeColumns); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) readInput(strategyName string) (*scoring.Input, error) {
	patients, err := p.db.ListPatients()
	if err != nil {
		return nil, err
	}
	events, err := p.db.ListActivityEvents()
	if err != nil {
		return nil, err
	}

	var grades []models.IncomeGradeRow
	if strategyName == "lookup" {
		grades, err = p.db.ListIncomeGrades()
		if err != nil {
			return nil, err
		}
	}

	return &scoring.Input{
		Patients: patients,
		Events:   events,
		Grades:   grades,
		Now:      time.Now(),
	}, nil
}

func (p *Pipeline) indexVectors(ctx context.Context, schema *encoding.Schema, scores []models.PatientScores) error {
	if p.vectors == nil {
		return nil
	}

	vectors := make([]milvus.PatientVector, 0, len(scores))
	for i := range scores {
		s := &scores[i].Scores
		if !s.Complete() {
			continue
		}
		vectors = append(vectors, milvus.PatientVector{
			PatientID:         scores[i].Patient.ID,
			Features:          schema.Encode(scores[i].Patient),
			RefillReminder:    s.RefillReminder,
			PriceSensitivity:  s.PriceSensitivity,
			Awareness:         s.Awareness,
			CoverageConfusion: s.CoverageConfusion,
			Demographic:       s.Demographic,
		})
	}

	return p.vectors.Replace(ctx, vectors)
}
