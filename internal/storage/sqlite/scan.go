package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/reviq/backend/internal/storage/models"
)

// timestampLayouts are tried in order when parsing activity timestamps.
// Anything unparseable stays nil and takes the 90-day default downstream.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a stored or ingested timestamp string, returning nil
// when the value is empty or in no known layout.
func ParseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (models.PatientRecord, error) {
	var p models.PatientRecord
	var name, phone, email, addr1, addr2 sql.NullString
	var gender, marital, city, state, zip, grade, condition, occupation sql.NullString
	var age, dependants sql.NullInt64

	err := row.Scan(&p.ID, &name, &phone, &email, &addr1, &addr2,
		&age, &gender, &marital, &city, &state, &zip,
		&grade, &condition, &dependants, &occupation)
	if err != nil {
		return p, fmt.Errorf("failed to scan patient row: %w", err)
	}

	p.Name = name.String
	p.Phone = phone.String
	p.Email = email.String
	p.AddressLine1 = addr1.String
	p.AddressLine2 = addr2.String
	p.Age = int(age.Int64)
	p.Gender = gender.String
	p.MaritialStatus = marital.String
	p.City = city.String
	p.State = state.String
	p.ZipCode = zip.String
	p.PatientCondition = condition.String
	p.NoOfDependant = int(dependants.Int64)
	p.Occupation = occupation.String
	p.AnnualIncomeGrade = ParseIncomeGrade(grade.String)

	return p, nil
}

func scanPatientScores(row rowScanner) (*models.PatientScores, error) {
	var p models.PatientRecord
	var name, phone, email, addr1, addr2 sql.NullString
	var gender, marital, city, state, zip, grade, condition, occupation sql.NullString
	var age, dependants sql.NullInt64
	var refill, price, awareness, coverage, demo, adherence sql.NullFloat64

	err := row.Scan(&p.ID, &name, &phone, &email, &addr1, &addr2,
		&age, &gender, &marital, &city, &state, &zip,
		&grade, &condition, &dependants, &occupation,
		&refill, &price, &awareness, &coverage, &demo, &adherence)
	if err != nil {
		return nil, err
	}

	p.Name = name.String
	p.Phone = phone.String
	p.Email = email.String
	p.AddressLine1 = addr1.String
	p.AddressLine2 = addr2.String
	p.Age = int(age.Int64)
	p.Gender = gender.String
	p.MaritialStatus = marital.String
	p.City = city.String
	p.State = state.String
	p.ZipCode = zip.String
	p.PatientCondition = condition.String
	p.NoOfDependant = int(dependants.Int64)
	p.Occupation = occupation.String
	p.AnnualIncomeGrade = ParseIncomeGrade(grade.String)

	return &models.PatientScores{
		Patient: p,
		Scores: models.ScoreSet{
			RefillReminder:    scoreValue(refill),
			PriceSensitivity:  scoreValue(price),
			Awareness:         scoreValue(awareness),
			CoverageConfusion: scoreValue(coverage),
			Demographic:       scoreValue(demo),
			Adherence:         scoreValue(adherence),
		},
	}, nil
}

// ParseIncomeGrade coerces the stored income grade to its ordinal value,
// returning nil for anything non-numeric.
func ParseIncomeGrade(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	grade, err := strconv.Atoi(value)
	if err != nil {
		// pandas-style coercion: "2.0" still counts.
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil {
			return nil
		}
		grade = int(f)
	}
	return &grade
}

func gradeString(grade *int) interface{} {
	if grade == nil {
		return nil
	}
	return strconv.Itoa(*grade)
}

func scoreValue(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func scoreOrNil(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
