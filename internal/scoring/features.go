package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/reviq/backend/internal/storage/models"
)

// missingTimestampDays is the age assigned to an event whose timestamp is
// absent or unparseable.
const missingTimestampDays = 90

// DerivedRow is one (patient, event) row of the joined table: the event's
// filled values, its derived flags, and the per-patient aggregates broadcast
// back onto every row of that patient.
type DerivedRow struct {
	Patient *models.PatientRecord

	Timestamp        *time.Time
	SupplyDays       float64
	PrescribedDays   float64
	ReminderResponse bool
	SessionDuration  float64
	AttemptCount     float64

	ShortRefill       int
	CoverageCheck     int
	CoverageCheckFail int
	ReminderEvent     int
	ReminderIgnored   int
	DaysSinceLast     float64

	ShortRefillCount         float64
	CoverageCheckAttempts    float64
	CoverageCheckFailRate    float64
	ReminderIgnoreRate       float64
	AvgReminderResponseDelay float64
}

// DeriveRow computes the per-event flags for one joined row. String
// comparisons against event_type and event_outcome are case-insensitive, and
// missing numerics take their documented defaults: supply_days 0, prescribed
// days the supply days, reminder response false, session duration 0, attempt
// count 1.
func DeriveRow(patient *models.PatientRecord, event *models.ActivityEvent, now time.Time) DerivedRow {
	row := DerivedRow{Patient: patient, Timestamp: event.Timestamp}

	row.SupplyDays = fillPtr(event.SupplyDays, 0)
	row.PrescribedDays = fillPtr(event.PrescribedMedicationDays, row.SupplyDays)
	row.SessionDuration = fillPtr(event.SessionDuration, 0)
	row.AttemptCount = fillPtr(event.AttemptCount, 1)
	if event.RefillReminderResponse != nil {
		row.ReminderResponse = *event.RefillReminderResponse
	}

	if row.SupplyDays < 0.7*row.PrescribedDays {
		row.ShortRefill = 1
	}

	eventType := strings.ToLower(event.EventType)
	outcome := strings.ToLower(event.EventOutcome)

	if eventType == "coverage_check" {
		row.CoverageCheck = 1
		if outcome == "failed" || outcome == "abandoned" {
			row.CoverageCheckFail = 1
		}
	}

	if eventType == "reminder" {
		row.ReminderEvent = 1
		if !row.ReminderResponse {
			row.ReminderIgnored = 1
		}
	}

	if event.Timestamp == nil {
		row.DaysSinceLast = missingTimestampDays
	} else {
		row.DaysSinceLast = math.Floor(now.Sub(*event.Timestamp).Hours() / 24)
	}

	return row
}

// joinRows inner-joins the patient table with the activity log on patient id
// and derives the per-event flags. Patients without events contribute no
// rows; events without a matching patient are dropped.
func joinRows(patients []models.PatientRecord, events []models.ActivityEvent, now time.Time) []DerivedRow {
	byID := make(map[string]*models.PatientRecord, len(patients))
	for i := range patients {
		byID[patients[i].ID] = &patients[i]
	}

	rows := make([]DerivedRow, 0, len(events))
	for i := range events {
		patient, ok := byID[events[i].PatientID]
		if !ok {
			continue
		}
		rows = append(rows, DeriveRow(patient, &events[i], now))
	}
	return rows
}

func fillPtr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
