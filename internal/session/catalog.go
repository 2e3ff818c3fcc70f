// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"sqlworker/internal/dialect"
)

// ErrNoSuchTable is returned when a table cannot be found by reflection.
var ErrNoSuchTable = errors.New("no such table")

// ColumnInfo is one reflected column.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
}

// Table is a reflected table definition.
type Table struct {
	Name    string
	Columns []ColumnInfo
}

// Column returns the named column, if present.
func (t *Table) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// ColumnNames lists column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog is the reflected schema of a session's database.
// The table list is read when the session opens; column definitions are
// loaded on first use and cached for the rest of the request.
type Catalog struct {
	db      *sql.DB
	dialect dialect.Dialect

	mu     sync.RWMutex
	tables map[string]bool
	cache  map[string]*Table
}

func newCatalog(db *sql.DB, d dialect.Dialect) *Catalog {
	return &Catalog{
		db:      db,
		dialect: d,
		tables:  make(map[string]bool),
		cache:   make(map[string]*Table),
	}
}

func (c *Catalog) reflect(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, c.dialect.TablesQuery())
	if err != nil {
		return err
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.tables = tables
	c.mu.Unlock()
	return nil
}

// Tables lists the tables of the default schema found at reflection time.
func (c *Catalog) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tables))
	for name := range c.tables {
		out = append(out, name)
	}
	return out
}

// Table reflects a table's columns. name may be schema-qualified.
// It returns ErrNoSuchTable when the table has no visible columns.
func (c *Catalog) Table(ctx context.Context, name string) (*Table, error) {
	c.mu.RLock()
	if t, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	schemaName, table := dialect.SplitTable(name)
	query, args := c.dialect.ColumnsQuery(schemaName, table)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &Table{Name: name}
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, ErrNoSuchTable
	}

	c.mu.Lock()
	c.cache[name] = t
	c.mu.Unlock()
	return t, nil
}

// Invalidate drops a cached table after DDL changed it.
func (c *Catalog) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, name)
}
