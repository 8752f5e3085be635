package encoding

import (
	"sort"

	"github.com/reviq/backend/internal/scoring"
	"github.com/reviq/backend/internal/storage/models"
)

// CategoricalColumns is the fixed categorical column set shared between the
// batch scoring run that fits the schema and the predictor that consumes it.
// Changing this list changes the vector layout, so it is part of the
// persisted artifact, not an implicit convention.
var CategoricalColumns = []string{
	"city",
	"zip_code",
	"state",
	"gender",
	"maritial_status",
	"occupation",
	"patient_condition",
	"annual_income_grade",
	"no_of_dependant",
}

// Schema is the fitted categorical-encoding artifact. It is produced once
// per batch run from the full patient table, persisted alongside the scored
// table, and loaded by the predictor so train and serve encode identically.
type Schema struct {
	Columns []string            `json:"columns"`
	Vocab   map[string][]string `json:"vocab"`
}

// Fit builds a schema from the patient table: one sorted vocabulary per
// categorical column.
func Fit(patients []models.PatientRecord) *Schema {
	vocab := make(map[string][]string, len(CategoricalColumns))
	for _, col := range CategoricalColumns {
		seen := make(map[string]bool)
		for i := range patients {
			seen[patients[i].CategoricalValue(col)] = true
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		vocab[col] = values
	}
	return &Schema{Columns: append([]string(nil), CategoricalColumns...), Vocab: vocab}
}

// Dim is the length of the vectors Encode produces: three numeric features
// plus one slot per categorical column.
func (s *Schema) Dim() int {
	return 3 + len(s.Columns)
}

// Index returns the vocabulary index of a column value, or -1 for a category
// the schema has never seen.
func (s *Schema) Index(column, value string) int {
	values := s.Vocab[column]
	i := sort.SearchStrings(values, value)
	if i < len(values) && values[i] == value {
		return i
	}
	return -1
}

// Encode maps a patient record onto the fixed feature vector used for
// similarity lookup: normalized age, income grade and dependents, then each
// categorical column as its normalized vocabulary index. Unknown categories
// encode as 0, the same fallback the scalar normalizer applies to missing
// values.
func (s *Schema) Encode(p models.PatientRecord) []float32 {
	vec := make([]float32, 0, s.Dim())

	vec = append(vec, float32(scoring.Normalize(float64(p.Age), 18, 90)))
	grade := 0.0
	if p.AnnualIncomeGrade != nil {
		grade = scoring.Normalize(float64(*p.AnnualIncomeGrade), 1, 4)
	}
	vec = append(vec, float32(grade))
	vec = append(vec, float32(scoring.Normalize(float64(p.NoOfDependant), 0, 5)))

	for _, col := range s.Columns {
		idx := s.Index(col, p.CategoricalValue(col))
		if idx < 0 || len(s.Vocab[col]) < 2 {
			vec = append(vec, 0)
			continue
		}
		vec = append(vec, float32(idx)/float32(len(s.Vocab[col])-1))
	}
	return vec
}
