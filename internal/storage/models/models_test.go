package models_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviq/backend/internal/storage/models"
)

func TestScoreSet_MarshalUndefinedAsNull(t *testing.T) {
	s := models.ScoreSet{
		RefillReminder:    0.07,
		PriceSensitivity:  0.48,
		Awareness:         0.10,
		CoverageConfusion: 0,
		Demographic:       0.28,
		Adherence:         math.NaN(),
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"refill_reminder_score": 0.07,
		"price_sensitivity_score": 0.48,
		"awareness_score": 0.1,
		"coverage_confusion_score": 0,
		"demo_score": 0.28,
		"adherence_score": null
	}`, string(data))
}

func TestScoreSet_JSONRoundTrip(t *testing.T) {
	in := models.ScoreSet{
		RefillReminder:    math.NaN(),
		PriceSensitivity:  0.5,
		Awareness:         math.NaN(),
		CoverageConfusion: 0.25,
		Demographic:       0.3,
		Adherence:         math.NaN(),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out models.ScoreSet
	require.NoError(t, json.Unmarshal(data, &out))

	require.True(t, math.IsNaN(out.RefillReminder))
	require.True(t, math.IsNaN(out.Awareness))
	require.True(t, math.IsNaN(out.Adherence))
	require.Equal(t, 0.5, out.PriceSensitivity)
	require.Equal(t, 0.25, out.CoverageConfusion)
	require.Equal(t, 0.3, out.Demographic)
}

func TestScoreSet_Complete(t *testing.T) {
	complete := models.ScoreSet{Adherence: math.NaN()}
	require.True(t, complete.Complete())

	partial := complete
	partial.Awareness = math.NaN()
	require.False(t, partial.Complete())
}

func TestPatientRecord_CategoricalValue(t *testing.T) {
	grade := 3
	p := models.PatientRecord{
		City:              "Austin",
		State:             "TX",
		Gender:            "female",
		AnnualIncomeGrade: &grade,
		NoOfDependant:     2,
	}

	require.Equal(t, "Austin", p.CategoricalValue("city"))
	require.Equal(t, "3", p.CategoricalValue("annual_income_grade"))
	require.Equal(t, "2", p.CategoricalValue("no_of_dependant"))
	require.Equal(t, "", p.CategoricalValue("not_a_column"))

	p.AnnualIncomeGrade = nil
	require.Equal(t, "", p.CategoricalValue("annual_income_grade"))
}
