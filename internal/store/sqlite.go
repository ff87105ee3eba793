package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/skillradar/internal/model"
	_ "modernc.org/sqlite"
)

// Ensure SQLiteStore implements model.Store.
var _ model.Store = (*SQLiteStore)(nil)

// SQLiteStore keeps the baseline, model artifacts and run history in one
// SQLite database. Baseline replacement happens in a single transaction.
type SQLiteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS baseline (
		position   INTEGER PRIMARY KEY,
		title      TEXT NOT NULL,
		company    TEXT NOT NULL,
		location   TEXT NOT NULL DEFAULT '',
		skills     TEXT NOT NULL DEFAULT '',
		experience TEXT NOT NULL DEFAULT '',
		summary    TEXT NOT NULL DEFAULT '',
		cluster    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS baseline_meta (
		id       INTEGER PRIMARY KEY CHECK (id = 1),
		saved_at DATETIME NOT NULL,
		records  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		key        TEXT PRIMARY KEY,
		blob       BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		fetched    INTEGER NOT NULL,
		new_count  INTEGER NOT NULL,
		matched    INTEGER NOT NULL,
		trained    INTEGER NOT NULL,
		first_run  INTEGER NOT NULL
	)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// LoadBaseline returns the saved baseline in its original order, or
// model.ErrNoBaseline if none was ever saved.
func (s *SQLiteStore) LoadBaseline(ctx context.Context) (model.Batch, error) {
	var records int
	err := s.db.QueryRowContext(ctx, "SELECT records FROM baseline_meta WHERE id = 1").Scan(&records)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoBaseline
	}
	if err != nil {
		return nil, fmt.Errorf("reading baseline meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, company, location, skills, experience, summary, cluster
		 FROM baseline ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying baseline: %w", err)
	}
	defer rows.Close()

	batch := make(model.Batch, 0, records)
	for rows.Next() {
		var j model.JobRecord
		if err := rows.Scan(&j.Title, &j.Company, &j.Location, &j.Skills, &j.Experience, &j.Summary, &j.Cluster); err != nil {
			return nil, fmt.Errorf("scanning baseline row: %w", err)
		}
		batch = append(batch, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating baseline: %w", err)
	}
	return batch, nil
}

// SaveBaseline replaces the whole baseline with batch in one transaction.
func (s *SQLiteStore) SaveBaseline(ctx context.Context, batch model.Batch) error {
	if err := s.saveBaseline(ctx, batch); err != nil {
		return &model.PersistenceError{Op: "save baseline", Err: err}
	}
	return nil
}

func (s *SQLiteStore) saveBaseline(ctx context.Context, batch model.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM baseline"); err != nil {
		return fmt.Errorf("clearing baseline: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO baseline (position, title, company, location, skills, experience, summary, cluster)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, j := range batch {
		if _, err := stmt.ExecContext(ctx, i, j.Title, j.Company, j.Location, j.Skills, j.Experience, j.Summary, j.Cluster); err != nil {
			return fmt.Errorf("inserting baseline row %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO baseline_meta (id, saved_at, records) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, records = excluded.records`,
		time.Now().UTC(), len(batch))
	if err != nil {
		return fmt.Errorf("updating baseline meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadModel returns the artifact stored under key, or model.ErrModelNotFound.
func (s *SQLiteStore) LoadModel(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT blob FROM artifacts WHERE key = ?", key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrModelNotFound
	}
	if err != nil {
		return nil, &model.ModelLoadError{Key: key, Err: err}
	}
	return blob, nil
}

// SaveModel upserts blob under key.
func (s *SQLiteStore) SaveModel(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (key, blob, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		key, blob)
	if err != nil {
		return &model.PersistenceError{Op: "save model " + key, Err: err}
	}
	return nil
}

// RecordRun appends a run to the history table.
func (s *SQLiteStore) RecordRun(ctx context.Context, r model.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, fetched, new_count, matched, trained, first_run)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt.UTC(), r.Fetched, r.New, r.Matched, r.Trained, r.FirstRun)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, fetched, new_count, matched, trained, first_run
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.Fetched, &r.New, &r.Matched, &r.Trained, &r.FirstRun); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
