package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/devsurvey/pkg/devsurvey/internalerr"
	"github.com/cognicore/devsurvey/pkg/devsurvey/store"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// pragmas are applied by the driver to every pooled connection.
const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// OpenSQLite opens a SQLite database with WAL mode and foreign keys enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		survey_path TEXT NOT NULL,
		col_path TEXT NOT NULL,
		policy TEXT NOT NULL,
		responses INTEGER NOT NULL,
		matched INTEGER NOT NULL,
		unmatched INTEGER NOT NULL,
		missing_country INTEGER NOT NULL,
		dropped INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS run_frequencies (
		run_id TEXT NOT NULL,
		column_name TEXT NOT NULL,
		token TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, column_name, token),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_economics (
		run_id TEXT NOT NULL,
		country TEXT NOT NULL,
		responses INTEGER NOT NULL,
		median_compensation REAL,
		cost_of_living REAL,
		cost_plus_rent REAL,
		purchasing_power REAL,
		affordability REAL,
		PRIMARY KEY (run_id, country),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_rows (
		run_id TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		country TEXT,
		country_key TEXT NOT NULL,
		matched INTEGER NOT NULL,
		compensation REAL,
		cost_of_living REAL,
		cost_plus_rent REAL,
		purchasing_power REAL,
		affordability REAL,
		PRIMARY KEY (run_id, row_index),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run has no id", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"run_frequencies", "run_economics", "run_rows", "runs"} {
		col := "run_id"
		if table == "runs" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+col+" = ?", r.ID); err != nil {
			return fmt.Errorf("replace run %s: %w", r.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, survey_path, col_path, policy,
			responses, matched, unmatched, missing_country, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(timeLayout), r.SurveyPath, r.CostOfLivingPath, r.Policy,
		r.Join.Responses, r.Join.Matched, r.Join.Unmatched, r.Join.MissingCountry, r.Join.Dropped)
	if err != nil {
		return err
	}

	if len(r.Frequencies) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_frequencies (run_id, column_name, token, count)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range r.Frequencies {
			if _, err := stmt.ExecContext(ctx, r.ID, f.Column, f.Token, f.Count); err != nil {
				return fmt.Errorf("frequency %s/%q: %w", f.Column, f.Token, err)
			}
		}
	}

	if len(r.Economics) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_economics (run_id, country, responses, median_compensation,
				cost_of_living, cost_plus_rent, purchasing_power, affordability)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range r.Economics {
			_, err := stmt.ExecContext(ctx, r.ID, e.Country, e.Responses, e.MedianCompensation,
				e.CostOfLiving, e.CostPlusRent, e.PurchasingPower, e.Affordability)
			if err != nil {
				return fmt.Errorf("economics %q: %w", e.Country, err)
			}
		}
	}

	if len(r.Rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_rows (run_id, row_index, country, country_key, matched, compensation,
				cost_of_living, cost_plus_rent, purchasing_power, affordability)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, row := range r.Rows {
			_, err := stmt.ExecContext(ctx, r.ID, row.Row, row.Country, row.Key, row.Matched, row.Compensation,
				row.CostOfLiving, row.CostPlusRent, row.PurchasingPower, row.Affordability)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Row, err)
			}
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, survey_path, col_path, policy,
			responses, matched, unmatched, missing_country, dropped
		FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, token, count FROM run_frequencies
		WHERE run_id = ? ORDER BY column_name, count DESC, token`, id)
	if err != nil {
		return store.Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var f store.Frequency
		if err := rows.Scan(&f.Column, &f.Token, &f.Count); err != nil {
			return store.Run{}, err
		}
		r.Frequencies = append(r.Frequencies, f)
	}
	if err := rows.Err(); err != nil {
		return store.Run{}, err
	}

	erows, err := s.db.QueryContext(ctx, `
		SELECT country, responses, median_compensation, cost_of_living,
			cost_plus_rent, purchasing_power, affordability
		FROM run_economics WHERE run_id = ?
		ORDER BY affordability IS NULL, affordability DESC, country`, id)
	if err != nil {
		return store.Run{}, err
	}
	defer erows.Close()
	for erows.Next() {
		var e store.Economics
		if err := erows.Scan(&e.Country, &e.Responses, &e.MedianCompensation, &e.CostOfLiving,
			&e.CostPlusRent, &e.PurchasingPower, &e.Affordability); err != nil {
			return store.Run{}, err
		}
		r.Economics = append(r.Economics, e)
	}
	if err := erows.Err(); err != nil {
		return store.Run{}, err
	}

	jrows, err := s.db.QueryContext(ctx, `
		SELECT row_index, country, country_key, matched, compensation,
			cost_of_living, cost_plus_rent, purchasing_power, affordability
		FROM run_rows WHERE run_id = ? ORDER BY row_index`, id)
	if err != nil {
		return store.Run{}, err
	}
	defer jrows.Close()
	for jrows.Next() {
		var row store.JoinedRow
		if err := jrows.Scan(&row.Row, &row.Country, &row.Key, &row.Matched, &row.Compensation,
			&row.CostOfLiving, &row.CostPlusRent, &row.PurchasingPower, &row.Affordability); err != nil {
			return store.Run{}, err
		}
		r.Rows = append(r.Rows, row)
	}
	return r, jrows.Err()
}

func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	query := `
		SELECT id, created_at, survey_path, col_path, policy,
			responses, matched, unmatched, missing_country, dropped
		FROM runs ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) TopFrequencies(ctx context.Context, runID, column string, limit int) ([]store.Frequency, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	query := `
		SELECT column_name, token, count FROM run_frequencies
		WHERE run_id = ? AND column_name = ?
		ORDER BY count DESC, token`
	args := []interface{}{runID, column}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Frequency
	for rows.Next() {
		var f store.Frequency
		if err := rows.Scan(&f.Column, &f.Token, &f.Count); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (store.Run, error) {
	var r store.Run
	var created string
	err := sc.Scan(&r.ID, &created, &r.SurveyPath, &r.CostOfLivingPath, &r.Policy,
		&r.Join.Responses, &r.Join.Matched, &r.Join.Unmatched, &r.Join.MissingCountry, &r.Join.Dropped)
	if err != nil {
		return store.Run{}, err
	}
	r.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return store.Run{}, fmt.Errorf("run %s: created_at: %w", r.ID, err)
	}
	return r, nil
}
