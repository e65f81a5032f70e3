// Package store persists survey records and covariate results in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coralwatch/reef-covariate-etl/internal/domain"
)

const dateLayout = "2006-01-02"

// Store wraps a SQLite database holding the survey-record input table and
// the covariate output table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema
// exists. Pass ":memory:" for an in-memory database (used by tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to a single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS survey_records (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL DEFAULT '',
			site_id TEXT NOT NULL DEFAULT '',
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			sample_date TEXT NOT NULL,
			buffer_radius_m REAL NOT NULL DEFAULT 0,
			measured_value REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS covariate_results (
			record_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			aggregate_value REAL,
			status TEXT NOT NULL,
			assets_matched INTEGER NOT NULL,
			requests_failed INTEGER NOT NULL,
			computed_at TEXT NOT NULL,
			PRIMARY KEY (record_id, run_id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// LoadSurveyRecords returns all survey records in insertion order. Row order
// is stable so positional joins downstream remain valid, though results are
// also keyed by record id.
func (s *Store) LoadSurveyRecords(ctx context.Context) ([]domain.SurveyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project, site_id, latitude, longitude, sample_date, buffer_radius_m, measured_value
		FROM survey_records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying survey records: %w", err)
	}
	defer rows.Close()

	var records []domain.SurveyRecord
	for rows.Next() {
		var rec domain.SurveyRecord
		var sampleDate string
		if err := rows.Scan(&rec.ID, &rec.Project, &rec.SiteID, &rec.Latitude, &rec.Longitude,
			&sampleDate, &rec.BufferRadiusM, &rec.MeasuredValue); err != nil {
			return nil, fmt.Errorf("scanning survey record: %w", err)
		}
		rec.SampleDate, err = time.Parse(dateLayout, sampleDate)
		if err != nil {
			return nil, fmt.Errorf("record %s: invalid sample_date %q", rec.ID, sampleDate)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertSurveyRecords adds survey records, used by seeding tools and tests.
func (s *Store) InsertSurveyRecords(ctx context.Context, records []domain.SurveyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO survey_records (id, project, site_id, latitude, longitude, sample_date, buffer_radius_m, measured_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Project, rec.SiteID, rec.Latitude, rec.Longitude,
			rec.SampleDate.Format(dateLayout), rec.BufferRadiusM, rec.MeasuredValue); err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// SaveResults writes one covariate row per record for the given run.
func (s *Store) SaveResults(ctx context.Context, runID string, results []domain.CovariateResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO covariate_results (record_id, run_id, aggregate_value, status, assets_matched, requests_failed, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		var value sql.NullFloat64
		if r.AggregateValue != nil {
			value = sql.NullFloat64{Float64: *r.AggregateValue, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.Record.ID, runID, value, string(r.Status),
			r.AssetsMatched, r.RequestsFailed, r.ComputedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting result for record %s: %w", r.Record.ID, err)
		}
	}
	return tx.Commit()
}

// LoadResults returns the covariate rows of a run keyed by record id.
func (s *Store) LoadResults(ctx context.Context, runID string) (map[string]domain.CovariateResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, aggregate_value, status, assets_matched, requests_failed, computed_at
		FROM covariate_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying covariate results: %w", err)
	}
	defer rows.Close()

	results := make(map[string]domain.CovariateResult)
	for rows.Next() {
		var r domain.CovariateResult
		var value sql.NullFloat64
		var status, computedAt string
		if err := rows.Scan(&r.Record.ID, &value, &status, &r.AssetsMatched, &r.RequestsFailed, &computedAt); err != nil {
			return nil, fmt.Errorf("scanning covariate result: %w", err)
		}
		if value.Valid {
			v := value.Float64
			r.AggregateValue = &v
		}
		r.Status = domain.CovariateStatus(status)
		r.ComputedAt, err = time.Parse(time.RFC3339, computedAt)
		if err != nil {
			return nil, fmt.Errorf("result %s: invalid computed_at %q", r.Record.ID, computedAt)
		}
		results[r.Record.ID] = r
	}
	return results, rows.Err()
}
