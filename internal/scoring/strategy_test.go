package scoring_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reviq/backend/internal/scoring"
	"github.com/reviq/backend/internal/storage/models"
)

var scoreNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func basePatient() models.PatientRecord {
	return models.PatientRecord{
		ID:                "P-1001",
		Name:              "Jordan Avery",
		Phone:             "555-0101",
		Email:             "jordan@example.com",
		State:             "TX",
		Age:               30,
		Gender:            "male",
		AnnualIncomeGrade: iptr(2),
		NoOfDependant:     1,
	}
}

func TestRateStrategy_SinglePatientSingleEvent(t *testing.T) {
	in := scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events: []models.ActivityEvent{{
			PatientID:                "P-1001",
			Timestamp:                tptr(scoreNow.AddDate(0, 0, -10)),
			EventType:                "refill",
			SupplyDays:               fptr(5),
			PrescribedMedicationDays: fptr(30),
			RefillReminderResponse:   bptr(false),
			SessionDuration:          fptr(120),
			AttemptCount:             fptr(2),
		}},
		Now: scoreNow,
	}

	out, err := scoring.NewRateStrategy().Score(in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	s := out[0].Scores
	require.InDelta(t, 0.48, s.PriceSensitivity, 1e-9)
	require.InDelta(t, 0.10, s.Awareness, 1e-9)
	require.InDelta(t, 0.00, s.CoverageConfusion, 1e-9)
	require.InDelta(t, 0.07, s.RefillReminder, 1e-9)
	require.InDelta(t, 0.28, s.Demographic, 1e-9)
	require.InDelta(t, 0.72, s.Adherence, 1e-9)
}

func TestRateStrategy_NoEventsKeepsScoresUndefined(t *testing.T) {
	in := scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Now:      scoreNow,
	}

	out, err := scoring.NewRateStrategy().Score(in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	s := out[0].Scores
	require.True(t, math.IsNaN(s.RefillReminder))
	require.True(t, math.IsNaN(s.PriceSensitivity))
	require.True(t, math.IsNaN(s.Awareness))
	require.True(t, math.IsNaN(s.CoverageConfusion))
	require.True(t, math.IsNaN(s.Adherence))
	// The demographic sub-score needs no activity and stays defined.
	require.InDelta(t, 0.28, s.Demographic, 1e-9)
}

func TestRateStrategy_MissingIncomeGrade(t *testing.T) {
	patient := basePatient()
	patient.AnnualIncomeGrade = nil

	in := scoring.Input{
		Patients: []models.PatientRecord{patient},
		Events: []models.ActivityEvent{{
			PatientID:                "P-1001",
			Timestamp:                tptr(scoreNow.AddDate(0, 0, -10)),
			EventType:                "refill",
			SupplyDays:               fptr(5),
			PrescribedMedicationDays: fptr(30),
			SessionDuration:          fptr(120),
		}},
		Now: scoreNow,
	}

	out, err := scoring.NewRateStrategy().Score(in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	// A missing income grade contributes 0 to its normalized term, so the
	// price formula keeps the full 0.6 weight: 0.6 + 0.4*(1/5).
	s := out[0].Scores
	require.InDelta(t, 0.68, s.PriceSensitivity, 1e-9)
	require.InDelta(t, 0.38, s.Demographic, 1e-9)
	require.False(t, math.IsNaN(s.Adherence))
}

func TestDemographicScore_RuralStateAdjustment(t *testing.T) {
	urban := basePatient()
	rural := basePatient()
	rural.State = "MS"

	urbanScore := scoring.DemographicScore(&urban)
	ruralScore := scoring.DemographicScore(&rural)

	require.InDelta(t, 0.01, ruralScore-urbanScore, 1e-9)
}

func TestDemographicScore_GenderAndCap(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.PatientRecord)
		want   float64
	}{
		{"male baseline", func(p *models.PatientRecord) {}, 0.28},
		{"female", func(p *models.PatientRecord) { p.Gender = "Female" }, 0.29},
		{"non-binary", func(p *models.PatientRecord) { p.Gender = "non-binary" }, 0.30},
		{"unknown gender gets base weight", func(p *models.PatientRecord) { p.Gender = "" }, 0.28},
		{
			"worst case stays capped at one",
			func(p *models.PatientRecord) {
				p.Age = 90
				p.AnnualIncomeGrade = iptr(1)
				p.NoOfDependant = 5
				p.Gender = "non-binary"
				p.State = "WV"
			},
			// 0.25 + 0.3 + 0.15 + 0.03 + 0.01, already under the cap.
			0.74,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePatient()
			tt.mutate(&p)
			require.InDelta(t, tt.want, scoring.DemographicScore(&p), 1e-9)
		})
	}
}

func TestRateStrategy_EventOrderDoesNotMatter(t *testing.T) {
	events := []models.ActivityEvent{
		{
			PatientID:                "P-1001",
			Timestamp:                tptr(scoreNow.AddDate(0, 0, -30)),
			EventType:                "refill",
			SupplyDays:               fptr(5),
			PrescribedMedicationDays: fptr(30),
		},
		{
			PatientID:    "P-1001",
			Timestamp:    tptr(scoreNow.AddDate(0, 0, -20)),
			EventType:    "coverage_check",
			EventOutcome: "failed",
		},
		{
			PatientID: "P-1001",
			Timestamp: tptr(scoreNow.AddDate(0, 0, -5)),
			EventType: "reminder",
		},
	}
	reversed := []models.ActivityEvent{events[2], events[1], events[0]}

	forward, err := scoring.NewRateStrategy().Score(scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events:   events,
		Now:      scoreNow,
	})
	require.NoError(t, err)

	backward, err := scoring.NewRateStrategy().Score(scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events:   reversed,
		Now:      scoreNow,
	})
	require.NoError(t, err)

	require.Equal(t, forward, backward)
}

func TestRateStrategy_Deterministic(t *testing.T) {
	in := scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events: []models.ActivityEvent{{
			PatientID:                "P-1001",
			Timestamp:                tptr(scoreNow.AddDate(0, 0, -10)),
			EventType:                "refill",
			SupplyDays:               fptr(5),
			PrescribedMedicationDays: fptr(30),
		}},
		Now: scoreNow,
	}

	first, err := scoring.NewRateStrategy().Score(in)
	require.NoError(t, err)
	second, err := scoring.NewRateStrategy().Score(in)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRateStrategy_LatestEventIsRepresentative(t *testing.T) {
	in := scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events: []models.ActivityEvent{
			{
				PatientID:       "P-1001",
				Timestamp:       tptr(scoreNow.AddDate(0, 0, -30)),
				EventType:       "login",
				SessionDuration: fptr(600),
			},
			{
				PatientID:       "P-1001",
				Timestamp:       tptr(scoreNow.AddDate(0, 0, -1)),
				EventType:       "login",
				SessionDuration: fptr(0),
			},
		},
		Now: scoreNow,
	}

	out, err := scoring.NewRateStrategy().Score(in)
	require.NoError(t, err)

	// Awareness reads the latest row's session duration and recency, so the
	// older 600-second session must not leak into it: 0.4 * (1/90) rounds to 0.
	require.InDelta(t, 0.00, out[0].Scores.Awareness, 1e-9)
}

func TestRateStrategy_UndatedEventSortsLast(t *testing.T) {
	in := scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events: []models.ActivityEvent{
			{
				PatientID:       "P-1001",
				Timestamp:       tptr(scoreNow.AddDate(0, 0, -1)),
				EventType:       "login",
				SessionDuration: fptr(600),
			},
			{
				PatientID: "P-1001",
				EventType: "login",
			},
		},
		Now: scoreNow,
	}

	out, err := scoring.NewRateStrategy().Score(in)
	require.NoError(t, err)

	// The undated row wins the latest slot: 90 days since last, zero session.
	require.InDelta(t, 0.40, out[0].Scores.Awareness, 1e-9)
}

func TestRateStrategy_RatesDivideByFullEventCount(t *testing.T) {
	events := []models.ActivityEvent{{
		PatientID: "P-1001",
		Timestamp: tptr(scoreNow),
		EventType: "reminder",
	}}
	for i := 0; i < 9; i++ {
		events = append(events, models.ActivityEvent{
			PatientID: "P-1001",
			Timestamp: tptr(scoreNow),
			EventType: "login",
		})
	}

	out, err := scoring.NewRateStrategy().Score(scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events:   events,
		Now:      scoreNow,
	})
	require.NoError(t, err)

	// Every reminder was ignored, but the ignore rate divides by all ten
	// events rather than the one reminder, so unrelated logins dilute it to
	// 0.1 and the score to 0.5*0.1 = 0.05.
	require.InDelta(t, 0.05, out[0].Scores.RefillReminder, 1e-9)
}

func TestRateStrategy_OrphanEventsAreDropped(t *testing.T) {
	out, err := scoring.NewRateStrategy().Score(scoring.Input{
		Patients: []models.PatientRecord{basePatient()},
		Events: []models.ActivityEvent{{
			PatientID: "P-unknown",
			Timestamp: tptr(scoreNow),
			EventType: "refill",
		}},
		Now: scoreNow,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, math.IsNaN(out[0].Scores.Adherence))
}

func TestRateStrategy_ScoresStayInRange(t *testing.T) {
	patients := []models.PatientRecord{basePatient()}
	patients[0].Age = 120
	patients[0].NoOfDependant = 12

	events := []models.ActivityEvent{}
	for i := 0; i < 20; i++ {
		events = append(events, models.ActivityEvent{
			PatientID:                "P-1001",
			Timestamp:                tptr(scoreNow.AddDate(0, 0, -400)),
			EventType:                "coverage_check",
			EventOutcome:             "failed",
			SupplyDays:               fptr(1),
			PrescribedMedicationDays: fptr(90),
		})
	}

	out, err := scoring.NewRateStrategy().Score(scoring.Input{
		Patients: patients,
		Events:   events,
		Now:      scoreNow,
	})
	require.NoError(t, err)

	s := out[0].Scores
	for _, v := range []float64{
		s.RefillReminder, s.PriceSensitivity, s.Awareness,
		s.CoverageConfusion, s.Demographic, s.Adherence,
	} {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
}
