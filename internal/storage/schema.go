package storage

import "fmt"

// Required column sets for the three input tables. A batch run refuses to
// start when any of these is absent; there is no partial-schema mode.
var (
	PatientColumns = []string{
		"id", "name", "phone", "email", "address_line1", "address_line2",
		"age", "gender", "maritial_status", "city", "state", "zip_code",
		"annual_income_grade", "patient_condition", "no_of_dependant", "occupation",
	}

	ActivityColumns = []string{
		"patient_id", "time_stamp", "event_type", "event_outcome",
		"supply_days", "prescribed_medication_days", "refill_reminder_response",
		"session_duration", "attempt_count", "channel",
	}

	IncomeColumns = []string{"grade", "income_range_low", "income_range_high"}
)

// SchemaError reports a required column missing from an input table.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s is missing required column %s", e.Table, e.Column)
}
