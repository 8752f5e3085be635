package scoring

import (
	"math"
	"sort"
	"time"
)

// combineScores evaluates the four weighted-sum formulas on a patient's
// representative row. Each formula's weights sum to 1.0, so every output is
// in [0,1] before rounding.
func combineScores(row *DerivedRow) (refillReminder, priceSensitivity, awareness, coverageConfusion float64) {
	incomeGrade := math.NaN()
	if row.Patient.AnnualIncomeGrade != nil {
		incomeGrade = float64(*row.Patient.AnnualIncomeGrade)
	}

	priceSensitivity = round2(
		0.6*(1-Normalize(incomeGrade, 1, 4)) +
			0.4*Normalize(row.ShortRefillCount, 0, 5))

	response := 0.0
	if row.ReminderResponse {
		response = 1.0
	}
	awareness = round2(
		0.4*Normalize(row.DaysSinceLast, 0, 90) +
			0.3*Normalize(row.SessionDuration, 0, 600) +
			0.3*response)

	coverageConfusion = round2(
		0.5*Normalize(row.CoverageCheckAttempts, 0, 5) +
			0.5*fillNaN(row.CoverageCheckFailRate, 0))

	refillReminder = round2(
		0.5*fillNaN(row.ReminderIgnoreRate, 0) +
			0.5*Normalize(fillNaN(row.AvgReminderResponseDelay, 0), 0, 72))

	return refillReminder, priceSensitivity, awareness, coverageConfusion
}

// latestRowPerPatient sorts rows ascending by timestamp and keeps the last
// row for each patient. Rows without a timestamp sort after every dated row,
// so an undated event can still end up representative.
func latestRowPerPatient(rows []DerivedRow) map[string]*DerivedRow {
	sorted := make([]int, len(rows))
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return tsBefore(rows[sorted[a]].Timestamp, rows[sorted[b]].Timestamp)
	})

	latest := make(map[string]*DerivedRow)
	for _, idx := range sorted {
		latest[rows[idx].Patient.ID] = &rows[idx]
	}
	return latest
}

func tsBefore(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}
