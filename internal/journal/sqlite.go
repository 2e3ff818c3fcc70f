// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// SQLite keeps entries in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens path, creating its directory, and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("journal.path is required for the sqlite journal")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLite) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (correlation_id, subcommand, database_name, status, data, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (correlation_id) DO UPDATE SET
			subcommand = excluded.subcommand,
			database_name = excluded.database_name,
			status = excluded.status,
			data = excluded.data,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		e.CorrelationID, e.Subcommand, e.Database, e.Status, e.Data, e.Error,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLite) Get(ctx context.Context, correlationID string) (Entry, error) {
	var started, finished string
	e := Entry{CorrelationID: correlationID}
	err := s.db.QueryRowContext(ctx, `
		SELECT subcommand, database_name, status, data, error, started_at, finished_at
		FROM entries WHERE correlation_id = ?`, correlationID).
		Scan(&e.Subcommand, &e.Database, &e.Status, &e.Data, &e.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return e, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
