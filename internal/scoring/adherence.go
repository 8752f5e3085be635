package scoring

import (
	"math"

	"github.com/reviq/backend/internal/storage/models"
)

// ComposeAdherence fills in the demographic sub-score and the composite
// adherence score of a ScoreSet whose four component scores are already set.
//
// The four components follow a "higher = more risk signal" convention and are
// inverted; demo_score already reads higher = worse and enters uninverted.
// If any component is missing the adherence score stays undefined rather
// than degrading to a fabricated value.
func ComposeAdherence(p *models.PatientRecord, s models.ScoreSet) models.ScoreSet {
	s.Demographic = DemographicScore(p)

	if !s.Complete() {
		s.Adherence = math.NaN()
		return s
	}

	s.Adherence = round2(
		0.25*(1-s.RefillReminder) +
			0.2*(1-s.PriceSensitivity) +
			0.2*(1-s.Awareness) +
			0.15*(1-s.CoverageConfusion) +
			0.2*s.Demographic)
	return s
}

// EmptyScoreSet is the score set of a patient with no scorable activity:
// every field undefined.
func EmptyScoreSet() models.ScoreSet {
	nan := math.NaN()
	return models.ScoreSet{
		RefillReminder:    nan,
		PriceSensitivity:  nan,
		Awareness:         nan,
		CoverageConfusion: nan,
		Demographic:       nan,
		Adherence:         nan,
	}
}
