package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/port-labs/incremental-sync/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunStore implements engine.RunRecorder on top of SQLite.
type RunStore struct {
	db   *sql.DB
	path string
}

// NewRunStore creates a store against the database file at path. Call
// Init before use.
func NewRunStore(path string) (*RunStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &RunStore{path: path}, nil
}

// Init opens the database, enables WAL mode and runs migrations.
func (s *RunStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return s.migrate()
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *RunStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RecordRun inserts one run outcome row.
func (s *RunStore) RecordRun(ctx context.Context, run engine.RunRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO runs (id, mode, status, started_at, completed_at, error,
			subscriptions, batches, pages, records, upserts, deletes, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		string(run.Mode),
		run.Status,
		run.StartedAt.UTC(),
		run.CompletedAt.UTC(),
		run.Error,
		run.Summary.Subscriptions,
		run.Summary.Batches,
		run.Summary.Pages,
		run.Summary.Records,
		run.Summary.Upserts,
		run.Summary.Deletes,
		run.Summary.Dropped,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (*engine.RunRecord, error) {
	query := `
		SELECT id, mode, status, started_at, completed_at, error,
			subscriptions, batches, pages, records, upserts, deletes, dropped
		FROM runs
		WHERE id = ?
	`

	run := &engine.RunRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Mode,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.Summary.Subscriptions,
		&run.Summary.Batches,
		&run.Summary.Pages,
		&run.Summary.Records,
		&run.Summary.Upserts,
		&run.Summary.Deletes,
		&run.Summary.Dropped,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*engine.RunRecord, error) {
	query := `
		SELECT id, mode, status, started_at, completed_at, error,
			subscriptions, batches, pages, records, upserts, deletes, dropped
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*engine.RunRecord{}
	for rows.Next() {
		run := &engine.RunRecord{}
		err := rows.Scan(
			&run.ID,
			&run.Mode,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
			&run.Summary.Subscriptions,
			&run.Summary.Batches,
			&run.Summary.Pages,
			&run.Summary.Records,
			&run.Summary.Upserts,
			&run.Summary.Deletes,
			&run.Summary.Dropped,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
