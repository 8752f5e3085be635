package evaluation

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/reviq/backend/internal/storage/models"
	"github.com/reviq/backend/pkg/logger"
)

// MatrixReader lists rows of the scored table.
type MatrixReader interface {
	ListPatientMatrix(limit int) ([]models.PatientScores, error)
}

// BatchPredictor re-predicts scores for already-scored demographics.
type BatchPredictor interface {
	PredictBatch(ctx context.Context, records []models.PatientRecord) ([]models.PatientScores, error)
}

// Evaluator measures train/serve drift: it re-predicts patients that already
// have pipeline-computed scores and compares the two score sets.
type Evaluator struct {
	db        MatrixReader
	predictor BatchPredictor
	tolerance float64
}

// Report summarizes one evaluation pass. MAE values are over patients with
// both a computed and a predicted value for the given component.
type Report struct {
	Patients              int     `json:"patients"`
	Compared              int     `json:"compared"`
	RefillReminderMAE     float64 `json:"refill_reminder_mae"`
	PriceSensitivityMAE   float64 `json:"price_sensitivity_mae"`
	AwarenessMAE          float64 `json:"awareness_mae"`
	CoverageConfusionMAE  float64 `json:"coverage_confusion_mae"`
	AdherenceMeanDelta    float64 `json:"adherence_mean_delta"`
	WithinToleranceShare  float64 `json:"within_tolerance_share"`
}

func NewEvaluator(db MatrixReader, predictor BatchPredictor, tolerance float64) *Evaluator {
	if tolerance <= 0 {
		tolerance = 0.1
	}
	return &Evaluator{db: db, predictor: predictor, tolerance: tolerance}
}

func (e *Evaluator) Evaluate(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = 100
	}

	computed, err := e.db.ListPatientMatrix(limit)
	if err != nil {
		return nil, err
	}
	if len(computed) == 0 {
		return nil, fmt.Errorf("patient matrix is empty; run a batch scoring pass first")
	}

	records := make([]models.PatientRecord, len(computed))
	for i := range computed {
		records[i] = computed[i].Patient
	}

	predicted, err := e.predictor.PredictBatch(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to re-predict scored patients: %w", err)
	}

	report := &Report{Patients: len(computed)}

	var refill, price, awareness, coverage accumulator
	var adherenceDelta accumulator
	withinTolerance := 0

	for i := range computed {
		c, p := computed[i].Scores, predicted[i].Scores

		refill.add(c.RefillReminder, p.RefillReminder)
		price.add(c.PriceSensitivity, p.PriceSensitivity)
		awareness.add(c.Awareness, p.Awareness)
		coverage.add(c.CoverageConfusion, p.CoverageConfusion)

		if !math.IsNaN(c.Adherence) && !math.IsNaN(p.Adherence) {
			delta := math.Abs(c.Adherence - p.Adherence)
			adherenceDelta.add(0, delta)
			if delta <= e.tolerance {
				withinTolerance++
			}
		}
	}

	report.Compared = adherenceDelta.n
	report.RefillReminderMAE = refill.mean()
	report.PriceSensitivityMAE = price.mean()
	report.AwarenessMAE = awareness.mean()
	report.CoverageConfusionMAE = coverage.mean()
	report.AdherenceMeanDelta = adherenceDelta.mean()
	if adherenceDelta.n > 0 {
		report.WithinToleranceShare = float64(withinTolerance) / float64(adherenceDelta.n)
	}

	logger.Info("Evaluation complete",
		zap.Int("patients", report.Patients),
		zap.Int("compared", report.Compared),
		zap.Float64("adherence_mean_delta", report.AdherenceMeanDelta),
	)

	return report, nil
}

type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(expected, actual float64) {
	if math.IsNaN(expected) || math.IsNaN(actual) {
		return
	}
	a.sum += math.Abs(expected - actual)
	a.n++
}

func (a *accumulator) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}
