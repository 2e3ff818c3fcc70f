// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session resolves a logical database name into a live, reflected
// connection for exactly one request.
//
// Sessions are never pooled or shared: Resolve opens a fresh *sql.DB, pings it
// within the configured connect timeout and reads the table list, and the
// caller must Close the session when the request is done.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sqlworker/internal/config"
	"sqlworker/internal/dialect"
	"sqlworker/internal/dsn"
	werrors "sqlworker/internal/errors"
	"sqlworker/internal/logging"
)

// Messages reported to requesters.
const (
	MsgUnknownDatabase   = "No database configured with the given name. Check your database parameter."
	MsgConnectionFailure = "Could not connect to the database requested."
)

// SecretStore looks up connection URIs kept outside the config.
type SecretStore interface {
	LoadDBURI(name string) (string, error)
}

// Resolver opens sessions for the configured databases.
type Resolver struct {
	databases map[string]config.Database
	secrets   SecretStore
	logger    *slog.Logger
}

// NewResolver creates a resolver over the configured databases. secrets may be
// nil when no database uses a keyring URI.
func NewResolver(databases map[string]config.Database, secrets SecretStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{databases: databases, secrets: secrets, logger: logger}
}

// Session is one request's connection to one database.
type Session struct {
	Name    string
	Type    dsn.DBType
	DB      *sql.DB
	Dialect dialect.Dialect
	Catalog *Catalog

	echo   bool
	logger *slog.Logger
}

// Resolve opens, pings and reflects the named database.
// It fails with UnknownDatabase when name is not configured and with
// ConnectionFailure when the database cannot be reached.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Session, error) {
	db, ok := r.databases[name]
	if !ok {
		return nil, werrors.New(werrors.UnknownDatabase, MsgUnknownDatabase)
	}
	opts := db.Options
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = config.DefaultConnectTimeout
	}

	uri, err := r.uri(name, db.URI)
	if err != nil {
		return nil, werrors.Wrap(werrors.ConnectionFailure, MsgConnectionFailure, err)
	}
	target, err := dsn.Resolve(uri, opts.Params)
	if err != nil {
		return nil, werrors.Wrap(werrors.ConnectionFailure, MsgConnectionFailure, err)
	}
	d, err := dialect.For(target.Type)
	if err != nil {
		return nil, werrors.Wrap(werrors.ConnectionFailure, MsgConnectionFailure, err)
	}

	sqlDB, err := sql.Open(target.Driver, target.DataSource)
	if err != nil {
		return nil, werrors.Wrap(werrors.ConnectionFailure, MsgConnectionFailure, err)
	}
	configurePool(sqlDB, target, opts)

	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, werrors.Wrap(werrors.ConnectionFailure, MsgConnectionFailure, err)
	}

	catalog := newCatalog(sqlDB, d)
	if err := catalog.reflect(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, werrors.Wrap(werrors.ConnectionFailure, MsgConnectionFailure, err)
	}

	r.logger.Debug("database session opened",
		"database", name,
		"engine", d.Name(),
		"tables", len(catalog.Tables()),
		"elapsed", time.Since(start))

	return &Session{
		Name:    name,
		Type:    target.Type,
		DB:      sqlDB,
		Dialect: d,
		Catalog: catalog,
		echo:    opts.Echo,
		logger:  r.logger.With("database", name),
	}, nil
}

func (r *Resolver) uri(name, uri string) (string, error) {
	if !strings.HasPrefix(uri, config.KeyringPrefix) {
		return uri, nil
	}
	if r.secrets == nil {
		return "", fmt.Errorf("database %q uses the keychain but none is available", name)
	}
	return r.secrets.LoadDBURI(strings.TrimPrefix(uri, config.KeyringPrefix))
}

// configurePool sizes the per-request pool. SQLite and DuckDB get a single
// connection so an in-memory database stays the same database for the whole
// request.
func configurePool(db *sql.DB, target *dsn.Target, opts config.Options) {
	switch {
	case opts.MaxOpenConns > 0:
		db.SetMaxOpenConns(opts.MaxOpenConns)
	case target.Type == dsn.DBTypeSQLite || target.Type == dsn.DBTypeDuckDB:
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(2)
	}
}

// Wrap builds a session around an already opened database without pinging or
// reflecting it. Tables are still reflected lazily through the Catalog.
func Wrap(name string, db *sql.DB, d dialect.Dialect, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		Name:    name,
		DB:      db,
		Dialect: d,
		Catalog: newCatalog(db, d),
		logger:  logger,
	}
}

// Close releases the session's connection.
func (s *Session) Close() error {
	return s.DB.Close()
}

// InTx runs fn in one transaction. It commits when fn returns nil and rolls
// back otherwise.
func (s *Session) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback() // no-op after commit

	if err := fn(&Tx{tx: sqlTx, echo: s.echo, logger: s.logger}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Tx is the statement runner handed to InTx callbacks.
type Tx struct {
	tx     *sql.Tx
	echo   bool
	logger *slog.Logger
}

// Exec runs a statement that returns no rows.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.trace(query, args)
	return t.tx.ExecContext(ctx, query, args...)
}

// Query runs a statement that returns rows.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	t.trace(query, args)
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) trace(query string, args []any) {
	if t.echo {
		t.logger.Debug("sql", "statement", query, "args", len(args))
	}
}
