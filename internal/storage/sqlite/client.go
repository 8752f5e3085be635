package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/encoding"
	"github.com/reviq/backend/internal/storage"
	"github.com/reviq/backend/internal/storage/models"
	"github.com/reviq/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

// NewClientWithDB wraps an existing handle; used by tests.
func NewClientWithDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patient_dtl (
		id TEXT PRIMARY KEY,
		name TEXT,
		phone TEXT,
		email TEXT,
		address_line1 TEXT,
		address_line2 TEXT,
		age INTEGER,
		gender TEXT,
		maritial_status TEXT,
		city TEXT,
		state TEXT,
		zip_code TEXT,
		annual_income_grade TEXT,
		patient_condition TEXT,
		no_of_dependant INTEGER,
		occupation TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_patient_state ON patient_dtl(state);

	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL,
		time_stamp TEXT,
		event_type TEXT,
		event_outcome TEXT,
		supply_days REAL,
		prescribed_medication_days REAL,
		refill_reminder_response INTEGER,
		session_duration REAL,
		attempt_count REAL,
		channel TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_activity_patient ON activity_log(patient_id);
	CREATE INDEX IF NOT EXISTS idx_activity_time ON activity_log(time_stamp);

	CREATE TABLE IF NOT EXISTS income_range_grade (
		grade INTEGER PRIMARY KEY,
		income_range_low REAL NOT NULL,
		income_range_high REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS patient_matrix (
		id TEXT PRIMARY KEY,
		name TEXT,
		phone TEXT,
		email TEXT,
		address_line1 TEXT,
		address_line2 TEXT,
		age INTEGER,
		gender TEXT,
		maritial_status TEXT,
		city TEXT,
		state TEXT,
		zip_code TEXT,
		annual_income_grade TEXT,
		patient_condition TEXT,
		no_of_dependant INTEGER,
		occupation TEXT,
		refill_reminder_score REAL,
		price_sensitivity_score REAL,
		awareness_score REAL,
		coverage_confusion_score REAL,
		demo_score REAL,
		adherence_score REAL
	);
	CREATE INDEX IF NOT EXISTS idx_matrix_adherence ON patient_matrix(adherence_score);

	CREATE TABLE IF NOT EXISTS encoding_schema (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS score_runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		patient_count INTEGER NOT NULL,
		event_count INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON score_runs(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// ValidateTable confirms every required column exists on a table, returning a
// storage.SchemaError on the first one missing.
func (c *Client) ValidateTable(table string, required []string) error {
	rows, err := c.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan column name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate columns: %w", err)
	}

	for _, col := range required {
		if !present[col] {
			return &storage.SchemaError{Table: table, Column: col}
		}
	}
	return nil
}

const patientSelect = `SELECT id, name, phone, email, address_line1, address_line2,
	age, gender, maritial_status, city, state, zip_code,
	annual_income_grade, patient_condition, no_of_dependant, occupation`

func (c *Client) ListPatients() ([]models.PatientRecord, error) {
	rows, err := c.db.Query(patientSelect + ` FROM patient_dtl`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []models.PatientRecord
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (c *Client) ListActivityEvents() ([]models.ActivityEvent, error) {
	rows, err := c.db.Query(`SELECT patient_id, time_stamp, event_type, event_outcome,
		supply_days, prescribed_medication_days, refill_reminder_response,
		session_duration, attempt_count, channel FROM activity_log`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	defer rows.Close()

	var events []models.ActivityEvent
	for rows.Next() {
		var e models.ActivityEvent
		var ts, eventType, outcome, channel sql.NullString
		var supply, prescribed, session, attempts sql.NullFloat64
		var response sql.NullBool

		err := rows.Scan(&e.PatientID, &ts, &eventType, &outcome,
			&supply, &prescribed, &response, &session, &attempts, &channel)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}

		e.Timestamp = ParseTimestamp(ts.String)
		e.EventType = eventType.String
		e.EventOutcome = outcome.String
		e.Channel = channel.String
		e.SupplyDays = nullFloat(supply)
		e.PrescribedMedicationDays = nullFloat(prescribed)
		e.SessionDuration = nullFloat(session)
		e.AttemptCount = nullFloat(attempts)
		if response.Valid {
			v := response.Bool
			e.RefillReminderResponse = &v
		}

		events = append(events, e)
	}
	return events, rows.Err()
}

func (c *Client) ListIncomeGrades() ([]models.IncomeGradeRow, error) {
	rows, err := c.db.Query(`SELECT grade, income_range_low, income_range_high FROM income_range_grade`)
	if err != nil {
		return nil, fmt.Errorf("failed to list income grades: %w", err)
	}
	defer rows.Close()

	var grades []models.IncomeGradeRow
	for rows.Next() {
		var g models.IncomeGradeRow
		if err := rows.Scan(&g.Grade, &g.IncomeRangeLow, &g.IncomeRangeHigh); err != nil {
			return nil, fmt.Errorf("failed to scan income grade row: %w", err)
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}

func (c *Client) InsertPatients(patients []models.PatientRecord) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO patient_dtl
		(id, name, phone, email, address_line1, address_line2, age, gender, maritial_status,
		 city, state, zip_code, annual_income_grade, patient_condition, no_of_dependant, occupation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare patient insert: %w", err)
	}
	defer stmt.Close()

	for i := range patients {
		p := &patients[i]
		_, err := stmt.Exec(p.ID, p.Name, p.Phone, p.Email, p.AddressLine1, p.AddressLine2,
			p.Age, p.Gender, p.MaritialStatus, p.City, p.State, p.ZipCode,
			gradeString(p.AnnualIncomeGrade), p.PatientCondition, p.NoOfDependant, p.Occupation)
		if err != nil {
			return fmt.Errorf("failed to insert patient %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

func (c *Client) InsertActivityEvents(events []models.ActivityEvent) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO activity_log
		(patient_id, time_stamp, event_type, event_outcome, supply_days,
		 prescribed_medication_days, refill_reminder_response, session_duration, attempt_count, channel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare activity insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		var ts interface{}
		if e.Timestamp != nil {
			ts = e.Timestamp.Format(time.RFC3339)
		}
		var response interface{}
		if e.RefillReminderResponse != nil {
			response = *e.RefillReminderResponse
		}
		_, err := stmt.Exec(e.PatientID, ts, e.EventType, e.EventOutcome,
			floatOrNil(e.SupplyDays), floatOrNil(e.PrescribedMedicationDays),
			response, floatOrNil(e.SessionDuration), floatOrNil(e.AttemptCount), e.Channel)
		if err != nil {
			return fmt.Errorf("failed to insert activity event: %w", err)
		}
	}

	return tx.Commit()
}

func (c *Client) InsertIncomeGrades(grades []models.IncomeGradeRow) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, g := range grades {
		_, err := tx.Exec(`INSERT OR REPLACE INTO income_range_grade (grade, income_range_low, income_range_high) VALUES (?, ?, ?)`,
			g.Grade, g.IncomeRangeLow, g.IncomeRangeHigh)
		if err != nil {
			return fmt.Errorf("failed to insert income grade %d: %w", g.Grade, err)
		}
	}

	return tx.Commit()
}

// ReplacePatientMatrix rewrites the scored table with the results of a
// batch run. A ScoreSet is never updated in place, only recomputed whole.
func (c *Client) ReplacePatientMatrix(scores []models.PatientScores) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM patient_matrix`); err != nil {
		return fmt.Errorf("failed to clear patient matrix: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO patient_matrix
		(id, name, phone, email, address_line1, address_line2, age, gender, maritial_status,
		 city, state, zip_code, annual_income_grade, patient_condition, no_of_dependant, occupation,
		 refill_reminder_score, price_sensitivity_score, awareness_score,
		 coverage_confusion_score, demo_score, adherence_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare matrix insert: %w", err)
	}
	defer stmt.Close()

	for i := range scores {
		p := &scores[i].Patient
		s := &scores[i].Scores
		_, err := stmt.Exec(p.ID, p.Name, p.Phone, p.Email, p.AddressLine1, p.AddressLine2,
			p.Age, p.Gender, p.MaritialStatus, p.City, p.State, p.ZipCode,
			gradeString(p.AnnualIncomeGrade), p.PatientCondition, p.NoOfDependant, p.Occupation,
			scoreOrNil(s.RefillReminder), scoreOrNil(s.PriceSensitivity),
			scoreOrNil(s.Awareness), scoreOrNil(s.CoverageConfusion),
			scoreOrNil(s.Demographic), scoreOrNil(s.Adherence))
		if err != nil {
			return fmt.Errorf("failed to insert matrix row %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit patient matrix: %w", err)
	}

	logger.Info("Patient matrix replaced", zap.Int("rows", len(scores)))
	return nil
}

const matrixSelect = patientSelect + `, refill_reminder_score, price_sensitivity_score,
	awareness_score, coverage_confusion_score, demo_score, adherence_score`

func (c *Client) GetPatientScores(id string) (*models.PatientScores, error) {
	row := c.db.QueryRow(matrixSelect+` FROM patient_matrix WHERE id = ?`, id)
	ps, err := scanPatientScores(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient scores: %w", err)
	}
	return ps, nil
}

func (c *Client) ListPatientMatrix(limit int) ([]models.PatientScores, error) {
	rows, err := c.db.Query(matrixSelect+` FROM patient_matrix LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient matrix: %w", err)
	}
	defer rows.Close()

	var out []models.PatientScores
	for rows.Next() {
		ps, err := scanPatientScores(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ps)
	}
	return out, rows.Err()
}

func (c *Client) InsertScoreRun(run *models.ScoreRun) error {
	_, err := c.db.Exec(`INSERT INTO score_runs (id, strategy, patient_count, event_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.PatientCount, run.EventCount, run.DurationMS, run.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert score run: %w", err)
	}
	return nil
}

func (c *Client) ListScoreRuns(limit int) ([]models.ScoreRun, error) {
	rows, err := c.db.Query(`SELECT id, strategy, patient_count, event_count, duration_ms, created_at
		FROM score_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list score runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ScoreRun
	for rows.Next() {
		var r models.ScoreRun
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Strategy, &r.PatientCount, &r.EventCount, &r.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan score run: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveEncodingSchema persists the fitted categorical-encoding artifact. One
// row only: the artifact of the most recent batch run.
func (c *Client) SaveEncodingSchema(schema *encoding.Schema) error {
	payload, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal encoding schema: %w", err)
	}

	_, err = c.db.Exec(`INSERT INTO encoding_schema (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save encoding schema: %w", err)
	}
	return nil
}

func (c *Client) LoadEncodingSchema() (*encoding.Schema, error) {
	var payload string
	err := c.db.QueryRow(`SELECT payload FROM encoding_schema WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no encoding schema saved; run a batch scoring pass first")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding schema: %w", err)
	}

	var schema encoding.Schema
	if err := json.Unmarshal([]byte(payload), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal encoding schema: %w", err)
	}
	return &schema, nil
}
