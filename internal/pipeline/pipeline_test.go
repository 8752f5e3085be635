package pipeline_test

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/reviq/backend/internal/pipeline"
	"github.com/reviq/backend/internal/scoring"
	"github.com/reviq/backend/internal/storage"
	"github.com/reviq/backend/internal/storage/sqlite"
)

func newMockDB(t *testing.T) (*sqlite.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewClientWithDB(db), mock
}

func expectColumns(mock sqlmock.Sqlmock, table string, columns []string) {
	rows := sqlmock.NewRows([]string{"name"})
	for _, c := range columns {
		rows.AddRow(c)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM pragma_table_info(?)`)).
		WithArgs(table).
		WillReturnRows(rows)
}

func TestRun_EndToEnd(t *testing.T) {
	db, mock := newMockDB(t)

	expectColumns(mock, "patient_dtl", storage.PatientColumns)
	expectColumns(mock, "activity_log", storage.ActivityColumns)

	mock.ExpectQuery(`SELECT .+ FROM patient_dtl`).
		WillReturnRows(sqlmock.NewRows(storage.PatientColumns).AddRow(
			"P-1", "Jordan Avery", "555-0101", "jordan@example.com", "", "",
			30, "male", "single", "Austin", "TX", "78701",
			"2", "chronic", 1, "engineer"))

	mock.ExpectQuery(`SELECT .+ FROM activity_log`).
		WillReturnRows(sqlmock.NewRows(storage.ActivityColumns).AddRow(
			"P-1", "2024-05-22T00:00:00Z", "refill", "completed",
			5.0, 30.0, false, 120.0, 2.0, "sms"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM patient_matrix`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(`INSERT INTO patient_matrix`).
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectExec(`INSERT INTO encoding_schema`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(`INSERT INTO score_runs`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p := pipeline.New(db, nil, nil, scoring.NewRateStrategy())

	completed := false
	p.OnRunComplete(func() { completed = true })

	var stages []string
	summary, err := p.Run(context.Background(), "rate", func(stage string, count int) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)
	require.NotNil(t, summary)

	require.Equal(t, "rate", summary.Strategy)
	require.Equal(t, 1, summary.Patients)
	require.Equal(t, 1, summary.Events)
	require.NotEmpty(t, summary.RunID)
	require.True(t, completed)
	require.Equal(t, []string{"validating", "reading", "scoring", "writing", "indexing"}, stages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_UnknownStrategy(t *testing.T) {
	db, _ := newMockDB(t)
	p := pipeline.New(db, nil, nil, scoring.NewRateStrategy())

	_, err := p.Run(context.Background(), "gradient-boost", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown scoring strategy")
}

func TestRun_RefusesBrokenInputSchema(t *testing.T) {
	db, mock := newMockDB(t)

	// patient_dtl is missing the occupation column.
	expectColumns(mock, "patient_dtl", storage.PatientColumns[:len(storage.PatientColumns)-1])

	p := pipeline.New(db, nil, nil, scoring.NewRateStrategy())
	_, err := p.Run(context.Background(), "rate", nil)
	require.Error(t, err)

	var schemaErr *storage.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "patient_dtl", schemaErr.Table)
	require.Equal(t, "occupation", schemaErr.Column)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_LookupStrategyRequiresIncomeTable(t *testing.T) {
	db, mock := newMockDB(t)

	expectColumns(mock, "patient_dtl", storage.PatientColumns)
	expectColumns(mock, "activity_log", storage.ActivityColumns)
	expectColumns(mock, "income_range_grade", storage.IncomeColumns[:2])

	p := pipeline.New(db, nil, nil, scoring.NewLookupStrategy())
	_, err := p.Run(context.Background(), "lookup", nil)

	var schemaErr *storage.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "income_range_grade", schemaErr.Table)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStrategies(t *testing.T) {
	db, _ := newMockDB(t)
	p := pipeline.New(db, nil, nil, scoring.NewRateStrategy(), scoring.NewLookupStrategy())
	require.ElementsMatch(t, []string{"rate", "lookup"}, p.Strategies())
}
