package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// PatientRecord is one row of the patient_dtl table. Contact fields are
// carried through to the scored output but never scored.
type PatientRecord struct {
	ID                string
	Name              string
	Phone             string
	Email             string
	AddressLine1      string
	AddressLine2      string
	City              string
	State             string
	ZipCode           string
	Age               int
	Gender            string
	MaritialStatus    string
	Occupation        string
	AnnualIncomeGrade *int
	PatientCondition  string
	NoOfDependant     int
}

// ActivityEvent is one row of the activity_log table. Nullable columns are
// pointers; the scoring core applies its own documented fallbacks.
type ActivityEvent struct {
	PatientID                string
	Timestamp                *time.Time
	EventType                string
	EventOutcome             string
	SupplyDays               *float64
	PrescribedMedicationDays *float64
	RefillReminderResponse   *bool
	SessionDuration          *float64
	AttemptCount             *float64
	Channel                  string
}

// IncomeGradeRow maps an ordinal income grade to its income range. Used only
// by the lookup scoring strategy.
type IncomeGradeRow struct {
	Grade           int
	IncomeRangeLow  float64
	IncomeRangeHigh float64
}

// ScoreSet holds the four behavioral component scores, the demographic
// sub-score and the composite adherence score, all in [0,1] at two decimals.
// An undefined score is NaN and serializes as null; it is never replaced by a
// fabricated default.
type ScoreSet struct {
	RefillReminder    float64
	PriceSensitivity  float64
	Awareness         float64
	CoverageConfusion float64
	Demographic       float64
	Adherence         float64
}

type scoreSetJSON struct {
	RefillReminder    *float64 `json:"refill_reminder_score"`
	PriceSensitivity  *float64 `json:"price_sensitivity_score"`
	Awareness         *float64 `json:"awareness_score"`
	CoverageConfusion *float64 `json:"coverage_confusion_score"`
	Demographic       *float64 `json:"demo_score"`
	Adherence         *float64 `json:"adherence_score"`
}

func (s ScoreSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoreSetJSON{
		RefillReminder:    nullable(s.RefillReminder),
		PriceSensitivity:  nullable(s.PriceSensitivity),
		Awareness:         nullable(s.Awareness),
		CoverageConfusion: nullable(s.CoverageConfusion),
		Demographic:       nullable(s.Demographic),
		Adherence:         nullable(s.Adherence),
	})
}

func (s *ScoreSet) UnmarshalJSON(data []byte) error {
	var raw scoreSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.RefillReminder = deref(raw.RefillReminder)
	s.PriceSensitivity = deref(raw.PriceSensitivity)
	s.Awareness = deref(raw.Awareness)
	s.CoverageConfusion = deref(raw.CoverageConfusion)
	s.Demographic = deref(raw.Demographic)
	s.Adherence = deref(raw.Adherence)
	return nil
}

// Complete reports whether all four component scores are defined.
func (s ScoreSet) Complete() bool {
	return !math.IsNaN(s.RefillReminder) &&
		!math.IsNaN(s.PriceSensitivity) &&
		!math.IsNaN(s.Awareness) &&
		!math.IsNaN(s.CoverageConfusion)
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// PatientScores is one row of the patient_matrix table: the full demographic
// record plus its scores.
type PatientScores struct {
	Patient PatientRecord `json:"patient"`
	Scores  ScoreSet      `json:"scores"`
}

// ScoreRun records one batch scoring run.
type ScoreRun struct {
	ID           string
	Strategy     string
	PatientCount int
	EventCount   int
	DurationMS   int
	CreatedAt    time.Time
}

// CategoricalValue renders the named categorical column of a patient record
// as a string, the form shared by the encoding schema between training and
// prediction.
func (p PatientRecord) CategoricalValue(column string) string {
	switch column {
	case "city":
		return p.City
	case "zip_code":
		return p.ZipCode
	case "state":
		return p.State
	case "gender":
		return p.Gender
	case "maritial_status":
		return p.MaritialStatus
	case "occupation":
		return p.Occupation
	case "patient_condition":
		return p.PatientCondition
	case "annual_income_grade":
		if p.AnnualIncomeGrade == nil {
			return ""
		}
		return strconv.Itoa(*p.AnnualIncomeGrade)
	case "no_of_dependant":
		return strconv.Itoa(p.NoOfDependant)
	}
	return ""
}
