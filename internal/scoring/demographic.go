package scoring

import (
	"math"
	"strings"

	"github.com/reviq/backend/internal/storage/models"
)

// ruralStates whose residents get a fixed access adjustment.
var ruralStates = map[string]bool{
	"MS": true, "WV": true, "AR": true, "AL": true, "KY": true,
	"NM": true, "MT": true, "WY": true, "AK": true,
}

// DemographicScore computes the demographic risk sub-score of a patient,
// independent of any activity data. Higher means worse expected adherence.
func DemographicScore(p *models.PatientRecord) float64 {
	ageScore := Normalize(float64(p.Age), 18, 90)

	incomeGrade := math.NaN()
	if p.AnnualIncomeGrade != nil {
		incomeGrade = float64(*p.AnnualIncomeGrade)
	}
	incomeScore := Normalize(incomeGrade, 1, 4)

	dependentsScore := Normalize(float64(p.NoOfDependant), 0, 5)

	var genderScore float64
	switch strings.ToLower(strings.TrimSpace(p.Gender)) {
	case "female":
		genderScore = 0.10
	case "non-binary":
		genderScore = 0.15
	default:
		genderScore = 0.05
	}

	stateScore := 0.0
	if ruralStates[p.State] {
		stateScore = 0.10
	}

	score := 0.25*ageScore +
		0.3*(1-incomeScore) +
		0.15*dependentsScore +
		0.2*genderScore +
		0.1*stateScore

	return round2(math.Min(score, 1))
}
