package handlers

import (
	"net/http/httptest"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/reviq/backend/internal/pipeline"
	"github.com/reviq/backend/internal/scoring"
	"github.com/reviq/backend/internal/storage/sqlite"
)

func newScoreApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := sqlite.NewClientWithDB(db)
	p := pipeline.New(client, nil, nil, scoring.NewRateStrategy())
	h := NewScoreHandler(p, client, nil, "rate")

	app := fiber.New()
	app.Post("/score/run", h.RunScore)
	app.Get("/score/runs", h.ListRuns)
	app.Get("/patients/:id/scores", h.GetPatientScores)
	return app, mock
}

func TestRunScore_SchemaErrorIsUnprocessable(t *testing.T) {
	app, mock := newScoreApp(t)

	// patient_dtl comes back with a single column, so validation fails fast.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM pragma_table_info(?)`)).
		WithArgs("patient_dtl").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("id"))

	status, body := postJSON(t, app, "/score/run", `{"strategy": "rate"}`)
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.Contains(t, body["error"], "missing required column")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunScore_UnknownStrategyFails(t *testing.T) {
	app, _ := newScoreApp(t)

	status, _ := postJSON(t, app, "/score/run", `{"strategy": "gradient-boost"}`)
	require.Equal(t, fiber.StatusInternalServerError, status)
}

func TestGetPatientScores_NotFound(t *testing.T) {
	app, mock := newScoreApp(t)

	mock.ExpectQuery(`SELECT .+ FROM patient_matrix WHERE id = \?`).
		WithArgs("P-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest("GET", "/patients/P-404/scores", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	app, mock := newScoreApp(t)

	mock.ExpectQuery(`SELECT .+ FROM score_runs ORDER BY created_at DESC LIMIT \?`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "strategy", "patient_count", "event_count", "duration_ms", "created_at",
		}).AddRow("run-1", "rate", 100, 900, 42, 1717243200))

	req := httptest.NewRequest("GET", "/score/runs", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
