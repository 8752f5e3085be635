package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/reviq/backend/internal/storage/models"
)

// riskyOccupations carry the full occupation-risk weight under the lookup
// variant; everything else gets a base risk of 0.2.
var riskyOccupations = map[string]bool{
	"unemployed": true,
	"retired":    true,
	"part-time":  true,
}

// LookupStrategy is the alternate variant: it left-joins the income-bracket
// lookup table on income grade and scores from per-patient activity
// aggregates plus demographic access signals. Unlike the rate variant it
// produces a defined score for every patient, events or not, because each of
// its terms has a documented fill.
type LookupStrategy struct{}

func NewLookupStrategy() *LookupStrategy { return &LookupStrategy{} }

func (s *LookupStrategy) Name() string { return "lookup" }

type lookupAggregate struct {
	eventCount            float64
	shortSupplies         float64
	refillEvents          float64
	adherenceRatioSum     float64
	adherenceRatioCount   float64
	reminderResponseCount float64
	channels              map[string]bool
	lastActivity          *time.Time
}

func (s *LookupStrategy) Score(in Input) ([]models.PatientScores, error) {
	incomeLow := make(map[int]float64, len(in.Grades))
	for _, g := range in.Grades {
		incomeLow[g.Grade] = g.IncomeRangeLow
	}

	agg := make(map[string]*lookupAggregate)
	for i := range in.Events {
		e := &in.Events[i]
		a := agg[e.PatientID]
		if a == nil {
			a = &lookupAggregate{channels: make(map[string]bool)}
			agg[e.PatientID] = a
		}
		a.eventCount++

		if e.SupplyDays != nil && *e.SupplyDays <= 15 {
			a.shortSupplies++
		}
		if strings.Contains(strings.ToLower(e.EventType), "refill") {
			a.refillEvents++
		}
		if e.SupplyDays != nil && e.PrescribedMedicationDays != nil && *e.PrescribedMedicationDays > 0 {
			a.adherenceRatioSum += *e.SupplyDays / *e.PrescribedMedicationDays
			a.adherenceRatioCount++
		}
		if e.RefillReminderResponse != nil && *e.RefillReminderResponse {
			a.reminderResponseCount++
		}
		if e.Channel != "" {
			a.channels[e.Channel] = true
		}
		if e.Timestamp != nil && (a.lastActivity == nil || e.Timestamp.After(*a.lastActivity)) {
			a.lastActivity = e.Timestamp
		}
	}

	out := make([]models.PatientScores, 0, len(in.Patients))
	for i := range in.Patients {
		patient := &in.Patients[i]
		scores := s.scorePatient(patient, agg[patient.ID], incomeLow, in.Now)
		out = append(out, models.PatientScores{
			Patient: *patient,
			Scores:  ComposeAdherence(patient, scores),
		})
	}
	return out, nil
}

func (s *LookupStrategy) scorePatient(p *models.PatientRecord, a *lookupAggregate, incomeLow map[int]float64, now time.Time) models.ScoreSet {
	shortSupplyRate := 0.0
	multipleShortRefillsRate := 0.0
	meanAdherenceRatio := 1.0
	daysSinceLast := float64(missingTimestampDays)
	uniqueChannels := 0.0
	notificationGap := 1.0

	if a != nil {
		shortSupplyRate = a.shortSupplies / a.eventCount
		if a.refillEvents > 0 {
			multipleShortRefillsRate = a.shortSupplies / a.refillEvents
		}
		if a.adherenceRatioCount > 0 {
			meanAdherenceRatio = a.adherenceRatioSum / a.adherenceRatioCount
		}
		if a.lastActivity != nil {
			daysSinceLast = math.Floor(now.Sub(*a.lastActivity).Hours() / 24)
		}
		uniqueChannels = float64(len(a.channels))
		notificationGap = 1 - Normalize(a.reminderResponseCount, 0, 10)
	}

	low := math.NaN()
	if p.AnnualIncomeGrade != nil {
		if v, ok := incomeLow[*p.AnnualIncomeGrade]; ok {
			low = v
		}
	}
	incomeScore := Normalize(1_000_000-low, 0, 1_000_000)

	occupationRisk := 0.2
	if riskyOccupations[strings.ToLower(p.Occupation)] {
		occupationRisk = 1.0
	}

	conditionScore := 0.0
	if strings.ToLower(p.PatientCondition) == "chronic" {
		conditionScore = 1.0
	}

	ageScore := Normalize(float64(p.Age), 18, 100)

	digitalAccess := 0.0
	if p.Email != "" && p.Phone != "" {
		digitalAccess = 1.0
	}

	channelMismatch := 1 - Normalize(uniqueChannels, 1, 5)

	price := shortSupplyRate*0.3 +
		multipleShortRefillsRate*0.2 +
		(1-meanAdherenceRatio)*0.2 +
		incomeScore*0.2 +
		occupationRisk*0.1

	awareness := Normalize(daysSinceLast, 0, 90)*0.4 +
		(1-conditionScore)*0.3 +
		(1-digitalAccess)*0.3

	coverage := ageScore*0.4 +
		(1-digitalAccess)*0.3 +
		channelMismatch*0.3

	notification := notificationGap*0.6 +
		(1-digitalAccess)*0.2 +
		channelMismatch*0.2

	set := EmptyScoreSet()
	set.PriceSensitivity = round2(clamp01(price))
	set.Awareness = round2(clamp01(awareness))
	set.CoverageConfusion = round2(clamp01(coverage))
	set.RefillReminder = round2(clamp01(notification))
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
