package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/reviq/backend/internal/storage"
	"github.com/reviq/backend/internal/storage/models"
	"github.com/reviq/backend/internal/storage/sqlite"
)

// header maps column names to their positions after validating that every
// required column is present.
type header map[string]int

func readHeader(r *csv.Reader, table string, required []string) (header, error) {
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", table, err)
	}

	h := make(header, len(record))
	for i, name := range record {
		h[strings.TrimSpace(strings.ToLower(name))] = i
	}

	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, &storage.SchemaError{Table: table, Column: col}
		}
	}
	return h, nil
}

func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParsePatients reads the patient_dtl CSV. Numeric fields that fail to parse
// take zero values; the income grade stays nil when unparseable so the
// scoring fallback applies.
func ParsePatients(reader io.Reader) ([]models.PatientRecord, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1

	h, err := readHeader(r, "patient_dtl", storage.PatientColumns)
	if err != nil {
		return nil, err
	}

	var patients []models.PatientRecord
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read patient row: %w", err)
		}

		p := models.PatientRecord{
			ID:               h.get(record, "id"),
			Name:             h.get(record, "name"),
			Phone:            h.get(record, "phone"),
			Email:            h.get(record, "email"),
			AddressLine1:     h.get(record, "address_line1"),
			AddressLine2:     h.get(record, "address_line2"),
			Gender:           h.get(record, "gender"),
			MaritialStatus:   h.get(record, "maritial_status"),
			City:             h.get(record, "city"),
			State:            h.get(record, "state"),
			ZipCode:          h.get(record, "zip_code"),
			PatientCondition: h.get(record, "patient_condition"),
			Occupation:       h.get(record, "occupation"),
		}
		p.Age, _ = strconv.Atoi(h.get(record, "age"))
		p.NoOfDependant, _ = strconv.Atoi(h.get(record, "no_of_dependant"))
		p.AnnualIncomeGrade = sqlite.ParseIncomeGrade(h.get(record, "annual_income_grade"))

		if p.ID == "" {
			continue
		}
		patients = append(patients, p)
	}
	return patients, nil
}

// ParseActivityEvents reads the activity_log CSV. Nullable numerics stay nil
// when blank or unparseable; timestamps in no known layout stay nil.
func ParseActivityEvents(reader io.Reader) ([]models.ActivityEvent, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1

	h, err := readHeader(r, "activity_log", storage.ActivityColumns)
	if err != nil {
		return nil, err
	}

	var events []models.ActivityEvent
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read activity row: %w", err)
		}

		e := models.ActivityEvent{
			PatientID:    h.get(record, "patient_id"),
			EventType:    h.get(record, "event_type"),
			EventOutcome: h.get(record, "event_outcome"),
			Channel:      h.get(record, "channel"),
		}
		e.Timestamp = sqlite.ParseTimestamp(h.get(record, "time_stamp"))
		e.SupplyDays = parseFloat(h.get(record, "supply_days"))
		e.PrescribedMedicationDays = parseFloat(h.get(record, "prescribed_medication_days"))
		e.SessionDuration = parseFloat(h.get(record, "session_duration"))
		e.AttemptCount = parseFloat(h.get(record, "attempt_count"))
		e.RefillReminderResponse = parseBool(h.get(record, "refill_reminder_response"))

		if e.PatientID == "" {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// ParseIncomeGrades reads the income_range_grade CSV.
func ParseIncomeGrades(reader io.Reader) ([]models.IncomeGradeRow, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1

	h, err := readHeader(r, "income_range_grade", storage.IncomeColumns)
	if err != nil {
		return nil, err
	}

	var grades []models.IncomeGradeRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read income grade row: %w", err)
		}

		var g models.IncomeGradeRow
		g.Grade, err = strconv.Atoi(h.get(record, "grade"))
		if err != nil {
			return nil, fmt.Errorf("invalid income grade %q", h.get(record, "grade"))
		}
		if low := parseFloat(h.get(record, "income_range_low")); low != nil {
			g.IncomeRangeLow = *low
		}
		if high := parseFloat(h.get(record, "income_range_high")); high != nil {
			g.IncomeRangeHigh = *high
		}
		grades = append(grades, g)
	}
	return grades, nil
}

func parseFloat(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseBool(value string) *bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "t":
		v := true
		return &v
	case "false", "0", "no", "f":
		v := false
		return &v
	}
	return nil
}
