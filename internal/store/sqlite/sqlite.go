// Package sqlite stores sync history in an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/inovacc/gitsafe/internal/model"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 50

const selectRuns = `SELECT id, repository_id, sync_trigger, started_at, duration_ms, outcome,
	COALESCE(commit_hash, ''), size, COALESCE(error, '') FROM sync_runs`

// Store keeps sync runs in one SQLite file.
type Store struct {
	db *sql.DB
}

// New opens or creates the database at dbPath and applies migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := NewMigrator(db).MigrateUp(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks if the database is accessible.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// RecordRun inserts run.
func (s *Store) RecordRun(ctx context.Context, run *model.SyncRun) error {
	if err := run.Validate(); err != nil {
		return err
	}

	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, repository_id, sync_trigger, started_at, duration_ms, outcome, commit_hash, size, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.RepositoryID,
		run.Trigger,
		run.StartedAt.UTC().UnixNano(),
		run.Duration.Milliseconds(),
		string(run.Outcome),
		nullString(run.CommitHash),
		run.Size,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}

	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, repositoryID string, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		rows *sql.Rows
		err  error
	)

	if repositoryID == "" {
		rows, err = s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, id LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectRuns+` WHERE repository_id = ? ORDER BY started_at DESC, id LIMIT ?`, repositoryID, limit)
	}

	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var runs []model.SyncRun

	for rows.Next() {
		var (
			run      model.SyncRun
			started  int64
			duration int64
			outcome  string
		)

		if err := rows.Scan(&run.ID, &run.RepositoryID, &run.Trigger, &started, &duration,
			&outcome, &run.CommitHash, &run.Size, &run.Error); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}

		run.StartedAt = time.Unix(0, started).UTC()
		run.Duration = time.Duration(duration) * time.Millisecond
		run.Outcome = model.Outcome(outcome)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// DeleteRuns removes every run of repositoryID.
func (s *Store) DeleteRuns(ctx context.Context, repositoryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_runs WHERE repository_id = ?`, repositoryID); err != nil {
		return fmt.Errorf("deleting sync runs: %w", err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
