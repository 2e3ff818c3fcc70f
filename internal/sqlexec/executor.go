// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlexec implements the worker's operation handlers.
// Each handler reads its fields from the request parameters, resolves a
// session for the requested database, runs its statements in a single
// transaction and returns a short human-readable result.
//
// Key behaviour:
//   - Missing fields fail with a validation error before any database contact
//   - Column descriptors are translated before the database is contacted
//   - All statements of one handler commit together or not at all
//   - Engine errors are reported as operation failures carrying the engine message
package sqlexec

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	werrors "sqlworker/internal/errors"
	"sqlworker/internal/logging"
	"sqlworker/internal/schema"
	"sqlworker/internal/session"
)

// nameNotGiven stands in for a missing table name in output messages.
const nameNotGiven = "NAME_NOT_GIVEN"

// OutputSink receives human-readable error text for the requester.
type OutputSink interface {
	Error(msg string)
}

// Sessions opens a session for a logical database name.
type Sessions interface {
	Resolve(ctx context.Context, name string) (*session.Session, error)
}

// Request is what the router hands to a handler.
type Request struct {
	CorrelationID string
	Params        Params
	Output        OutputSink
}

// Handler performs one subcommand and returns its result string.
type Handler func(ctx context.Context, req Request) (string, error)

// Executor runs the operation handlers against resolved sessions.
type Executor struct {
	sessions Sessions
	logger   *slog.Logger
}

// New creates an Executor.
func New(sessions Sessions, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{sessions: sessions, logger: logger}
}

// Handlers returns the handler of every supported subcommand.
func (e *Executor) Handlers() map[string]Handler {
	return map[string]Handler{
		"CreateTable":       e.CreateTable,
		"DropTable":         e.DropTable,
		"AddTableColumns":   e.AddTableColumns,
		"DropTableColumns":  e.DropTableColumns,
		"AlterTableColumns": e.AlterTableColumns,
		"ExecuteSQL":        e.ExecuteSQL,
		"Insert":            e.Insert,
		"Delete":            e.Delete,
	}
}

// inputs collects required fields, reporting the first missing one to the
// output sink the way every handler does.
type inputs struct {
	req    Request
	action string
	err    error
}

func (e *Executor) inputs(req Request, format string) *inputs {
	name := nameNotGiven
	if n, err := req.Params.String("name"); err == nil {
		name = n
	}
	action := format
	if strings.Contains(format, "%s") {
		action = fmt.Sprintf(format, name)
	}
	return &inputs{req: req, action: action}
}

func (in *inputs) fail(err error) {
	if in.err != nil {
		return
	}
	in.err = err
	if werrors.Is(err, werrors.Validation) && in.req.Output != nil {
		var we *werrors.E
		if werrors.As(err, &we) {
			in.req.Output.Error(fmt.Sprintf("Unable to %s because of %s", in.action, lowerFirst(we.Error())))
		}
	}
}

func (in *inputs) str(key string) string {
	if in.err != nil {
		return ""
	}
	v, err := in.req.Params.String(key)
	if err != nil {
		in.fail(err)
	}
	return v
}

func (in *inputs) descriptor(key string) schema.Descriptor {
	if in.err != nil {
		return nil
	}
	v, err := in.req.Params.Descriptor(key)
	if err != nil {
		in.fail(err)
	}
	return v
}

func (in *inputs) names(key string) []string {
	if in.err != nil {
		return nil
	}
	v, err := in.req.Params.Names(key)
	if err != nil {
		in.fail(err)
	}
	return v
}

func (in *inputs) rows(key string) []map[string]any {
	if in.err != nil {
		return nil
	}
	v, err := in.req.Params.Rows(key)
	if err != nil {
		in.fail(err)
	}
	return v
}

func (in *inputs) predicate(key string) map[string]any {
	if in.err != nil {
		return nil
	}
	v, err := in.req.Params.Predicate(key)
	if err != nil {
		in.fail(err)
	}
	return v
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// withSession resolves database, runs fn and always closes the session.
func (e *Executor) withSession(ctx context.Context, database string, fn func(s *session.Session) (string, error)) (string, error) {
	s, err := e.sessions.Resolve(ctx, database)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			e.logger.Warn("failed to close database session", "database", database, "error", cerr)
		}
	}()
	return fn(s)
}

func failure(msg string, err error) error {
	var we *werrors.E
	if werrors.As(err, &we) && we.Kind != werrors.OperationFailure {
		return err
	}
	return werrors.Wrap(werrors.OperationFailure, msg, err)
}

// execAll runs statements in one transaction.
func execAll(ctx context.Context, s *session.Session, stmts []string) error {
	return s.InTx(ctx, func(tx *session.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateTable creates a table from a column descriptor.
func (e *Executor) CreateTable(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "create table %s")
	database := in.str("database")
	name := in.str("name")
	desc := in.descriptor("columns")
	if in.err != nil {
		return "", in.err
	}
	cols, err := schema.Translate(desc)
	if err != nil {
		return "", err
	}

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		e.logger.Info("Attempting to create the table", "table", name, "correlation_id", req.CorrelationID)
		stmts, err := s.Dialect.CreateTable(name, cols)
		if err == nil {
			err = execAll(ctx, s, stmts)
		}
		if err != nil {
			return "", failure("Could not create the table "+name, err)
		}
		return fmt.Sprintf("Table %s created", name), nil
	})
}

// DropTable drops an existing table.
func (e *Executor) DropTable(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "drop table %s")
	database := in.str("database")
	name := in.str("name")
	if in.err != nil {
		return "", in.err
	}

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		e.logger.Info("Attempting to drop the table", "table", name, "correlation_id", req.CorrelationID)
		if err := execAll(ctx, s, []string{s.Dialect.DropTable(name)}); err != nil {
			return "", failure("Could not drop the table "+name, err)
		}
		return fmt.Sprintf("Table %s dropped", name), nil
	})
}

// AddTableColumns adds described columns to an existing table.
func (e *Executor) AddTableColumns(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "add columns to table %s")
	database := in.str("database")
	name := in.str("name")
	desc := in.descriptor("columns")
	if in.err != nil {
		return "", in.err
	}
	cols, err := schema.Translate(desc)
	if err != nil {
		return "", err
	}

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		e.logger.Info("Attempting to add columns", "table", name, "columns", len(cols), "correlation_id", req.CorrelationID)
		stmts := make([]string, 0, len(cols))
		for _, c := range cols {
			stmt, err := s.Dialect.AddColumn(name, c)
			if err != nil {
				return "", failure("Could not add columns to "+name, err)
			}
			stmts = append(stmts, stmt)
		}
		if err := execAll(ctx, s, stmts); err != nil {
			return "", failure("Could not add columns to "+name, err)
		}
		s.Catalog.Invalidate(name)
		return fmt.Sprintf("%d columns added to %s", len(cols), name), nil
	})
}

// DropTableColumns removes named columns from a table.
func (e *Executor) DropTableColumns(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "drop columns from table %s")
	database := in.str("database")
	name := in.str("name")
	columns := in.names("columns")
	if in.err != nil {
		return "", in.err
	}

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		e.logger.Info("Attempting to drop columns", "table", name, "columns", len(columns), "correlation_id", req.CorrelationID)
		stmts := make([]string, len(columns))
		for i, c := range columns {
			stmts[i] = s.Dialect.DropColumn(name, c)
		}
		if err := execAll(ctx, s, stmts); err != nil {
			return "", failure("Could not drop columns from "+name, err)
		}
		s.Catalog.Invalidate(name)
		return fmt.Sprintf("%d columns dropped from %s", len(columns), name), nil
	})
}

// AlterTableColumns changes the type, nullability and autoincrement of
// existing columns. Length and the remaining options are not applied.
func (e *Executor) AlterTableColumns(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "alter columns of table %s")
	database := in.str("database")
	name := in.str("name")
	desc := in.descriptor("columns")
	if in.err != nil {
		return "", in.err
	}
	cols, err := schema.Translate(desc)
	if err != nil {
		return "", err
	}
	cols = schema.ForAlter(cols)

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		msg := "Could not alter columns of " + name
		table, err := s.Catalog.Table(ctx, name)
		if err != nil {
			return "", failure(msg, err)
		}
		var stmts []string
		for _, c := range cols {
			if _, ok := table.Column(c.Name); !ok {
				return "", failure(msg, fmt.Errorf("no column %q", c.Name))
			}
			alter, err := s.Dialect.AlterColumn(name, c)
			if err != nil {
				return "", failure(msg, err)
			}
			stmts = append(stmts, alter...)
		}
		e.logger.Info("Attempting to alter columns", "table", name, "columns", len(cols), "correlation_id", req.CorrelationID)
		if err := execAll(ctx, s, stmts); err != nil {
			return "", failure(msg, err)
		}
		s.Catalog.Invalidate(name)
		return fmt.Sprintf("%d columns altered in %s", len(cols), name), nil
	})
}

// ExecuteSQL runs arbitrary SQL text and classifies its effect.
func (e *Executor) ExecuteSQL(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "execute sql")
	database := in.str("database")
	text := in.str("sql")
	if in.err != nil {
		return "", in.err
	}

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		e.logger.Info("Attempting to execute sql", "correlation_id", req.CorrelationID)
		var result string
		err := s.InTx(ctx, func(tx *session.Tx) error {
			switch Classify(text) {
			case KindRows:
				res, err := tx.Exec(ctx, text)
				if err != nil {
					return err
				}
				n, err := res.RowsAffected()
				if err != nil {
					n = -1
				}
				result = fmt.Sprintf("%d rows effected", n)
			case KindDDL:
				if _, err := tx.Exec(ctx, text); err != nil {
					return err
				}
				result = "DDL executed"
			default:
				rows, err := tx.Query(ctx, text)
				if err != nil {
					return err
				}
				for rows.Next() {
				}
				if err := rows.Close(); err != nil {
					return err
				}
				if err := rows.Err(); err != nil {
					return err
				}
				result = "SQL executed"
			}
			return nil
		})
		if err != nil {
			return "", failure("Could not execute the given sql", err)
		}
		return result, nil
	})
}

// Insert inserts rows into an existing table, one statement per row.
func (e *Executor) Insert(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "insert rows into table %s")
	database := in.str("database")
	name := in.str("name")
	rows := in.rows("rows")
	if in.err != nil {
		return "", in.err
	}

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		msg := "Could not insert into " + name
		table, err := s.Catalog.Table(ctx, name)
		if err != nil {
			return "", failure(msg, err)
		}

		type stmt struct {
			sql  string
			args []any
		}
		stmts := make([]stmt, 0, len(rows))
		for i, row := range rows {
			for col := range row {
				if _, ok := table.Column(col); !ok {
					return "", failure(msg, fmt.Errorf("row %d: no column %q", i, col))
				}
			}
			var cols []string
			var args []any
			for _, col := range table.ColumnNames() {
				v, ok := row[col]
				if !ok {
					continue
				}
				arg, err := bindValue(v)
				if err != nil {
					return "", failure(msg, fmt.Errorf("row %d column %q: %w", i, col, err))
				}
				cols = append(cols, col)
				args = append(args, arg)
			}
			stmts = append(stmts, stmt{sql: s.Dialect.Insert(name, cols), args: args})
		}

		e.logger.Info("Attempting to insert rows", "table", name, "rows", len(stmts), "correlation_id", req.CorrelationID)
		err = s.InTx(ctx, func(tx *session.Tx) error {
			for i, st := range stmts {
				if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
			}
			return nil
		})
		if err != nil {
			return "", failure(msg, err)
		}
		return fmt.Sprintf("%d rows inserted", len(stmts)), nil
	})
}

// Delete removes rows matching an equality-AND predicate in one statement.
func (e *Executor) Delete(ctx context.Context, req Request) (string, error) {
	in := e.inputs(req, "delete rows from table %s")
	database := in.str("database")
	name := in.str("name")
	where := in.predicate("where")
	if in.err != nil {
		return "", in.err
	}

	columns := make([]string, 0, len(where))
	for c := range where {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	nulls := make([]bool, len(columns))
	var args []any
	for i, c := range columns {
		if where[c] == nil {
			nulls[i] = true
			continue
		}
		arg, err := bindValue(where[c])
		if err != nil {
			return "", werrors.Wrap(werrors.Validation, "Invalid input where", err)
		}
		args = append(args, arg)
	}

	return e.withSession(ctx, database, func(s *session.Session) (string, error) {
		e.logger.Info("Attempting to delete rows", "table", name, "correlation_id", req.CorrelationID)
		query := s.Dialect.Delete(name, columns, nulls)
		var n int64
		err := s.InTx(ctx, func(tx *session.Tx) error {
			res, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return err
			}
			n, err = res.RowsAffected()
			return err
		})
		if err != nil {
			return "", failure("Could not delete from "+name, err)
		}
		return fmt.Sprintf("%d rows deleted", n), nil
	})
}
