package scoring

import (
	"time"

	"github.com/reviq/backend/internal/storage/models"
)

// Input is the complete immutable input of one scoring pass. Now is explicit
// so a pass is deterministic and both the batch and the single-record path
// evaluate against the same clock.
type Input struct {
	Patients []models.PatientRecord
	Events   []models.ActivityEvent
	Grades   []models.IncomeGradeRow
	Now      time.Time
}

// Strategy turns raw patient and activity tables into one ScoreSet per
// patient. Implementations are pure transforms: same input, same output, no
// I/O.
type Strategy interface {
	Name() string
	Score(in Input) ([]models.PatientScores, error)
}

// RateStrategy is the primary variant: per-event flags, per-patient
// aggregate rates, and the four weighted formulas over the latest event row.
type RateStrategy struct{}

func NewRateStrategy() *RateStrategy { return &RateStrategy{} }

func (s *RateStrategy) Name() string { return "rate" }

func (s *RateStrategy) Score(in Input) ([]models.PatientScores, error) {
	rows := joinRows(in.Patients, in.Events, in.Now)
	aggregateByPatient(rows)
	latest := latestRowPerPatient(rows)

	out := make([]models.PatientScores, 0, len(in.Patients))
	for i := range in.Patients {
		patient := &in.Patients[i]
		scores := EmptyScoreSet()

		// Left join: a patient with no events keeps undefined scores.
		if row, ok := latest[patient.ID]; ok {
			scores.RefillReminder, scores.PriceSensitivity,
				scores.Awareness, scores.CoverageConfusion = combineScores(row)
		}

		out = append(out, models.PatientScores{
			Patient: *patient,
			Scores:  ComposeAdherence(patient, scores),
		})
	}
	return out, nil
}
