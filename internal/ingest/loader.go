package ingest

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/reviq/backend/internal/metrics"
	"github.com/reviq/backend/internal/storage/sqlite"
	"github.com/reviq/backend/pkg/logger"
)

// Loader moves uploaded CSV tables into sqlite. Table names match the
// canonical input tables of the scoring pipeline.
type Loader struct {
	db *sqlite.Client
}

func NewLoader(db *sqlite.Client) *Loader {
	return &Loader{db: db}
}

// Load parses and stores one CSV upload, returning the row count.
func (l *Loader) Load(table string, reader io.Reader) (int, error) {
	var count int

	switch table {
	case "patient_dtl":
		patients, err := ParsePatients(reader)
		if err != nil {
			return 0, err
		}
		if err := l.db.InsertPatients(patients); err != nil {
			return 0, err
		}
		count = len(patients)

	case "activity_log":
		events, err := ParseActivityEvents(reader)
		if err != nil {
			return 0, err
		}
		if err := l.db.InsertActivityEvents(events); err != nil {
			return 0, err
		}
		count = len(events)

	case "income_range_grade":
		grades, err := ParseIncomeGrades(reader)
		if err != nil {
			return 0, err
		}
		if err := l.db.InsertIncomeGrades(grades); err != nil {
			return 0, err
		}
		count = len(grades)

	default:
		return 0, fmt.Errorf("unknown ingest table %q", table)
	}

	metrics.IngestRows.WithLabelValues(table).Add(float64(count))
	logger.Info("Table loaded", zap.String("table", table), zap.Int("rows", count))
	return count, nil
}
