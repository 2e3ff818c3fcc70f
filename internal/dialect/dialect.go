// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dialect renders the statements the operation handlers execute.
// Each supported engine gets a Dialect that knows its identifier quoting,
// bind placeholders, column type names, autoincrement syntax, which column
// alterations it supports, and how to read its catalog for reflection.
//
// Dialects only build SQL text. Executing it, and deciding what an engine
// error means, belongs to the session and handler layers.
package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sqlworker/internal/dsn"
	"sqlworker/internal/schema"
)

// ErrUnsupported marks an operation the engine cannot perform.
var ErrUnsupported = errors.New("operation not supported")

// Dialect builds engine-specific SQL.
type Dialect interface {
	// Name is the engine name used in logs and messages.
	Name() string
	// Quote quotes an identifier. A dotted name is quoted per part.
	Quote(ident string) string
	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string

	CreateTable(table string, cols []schema.Column) ([]string, error)
	DropTable(table string) string
	AddColumn(table string, col schema.Column) (string, error)
	DropColumn(table, column string) string
	// AlterColumn applies the bare type, nullability and autoincrement of col.
	AlterColumn(table string, col schema.Column) ([]string, error)

	Insert(table string, columns []string) string
	// Delete renders an equality-AND delete. nulls[i] selects IS NULL for columns[i].
	Delete(table string, columns []string, nulls []bool) string

	// TablesQuery lists base tables of the session's default schema.
	TablesQuery() string
	// ColumnsQuery returns name, type and is_nullable ('YES'/'NO') rows in
	// ordinal order for a table, optionally in an explicit schema.
	ColumnsQuery(schemaName, table string) (string, []any)
}

// For returns the dialect of a database type.
func For(t dsn.DBType) (Dialect, error) {
	switch t {
	case dsn.DBTypePostgreSQL:
		return Postgres(), nil
	case dsn.DBTypeSQLite:
		return SQLite(), nil
	case dsn.DBTypeSQLServer:
		return SQLServer(), nil
	case dsn.DBTypeHANA:
		return HANA(), nil
	case dsn.DBTypeDuckDB:
		return DuckDB(), nil
	}
	return nil, fmt.Errorf("no dialect for database type %q", t)
}

// SplitTable splits "schema.table" into its parts; schema is "" when absent.
func SplitTable(name string) (schemaName, table string) {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// generic implements Dialect from per-engine hooks.
type generic struct {
	name        string
	open, close string
	placeholder func(n int) string
	typeSQL     func(c schema.Column) string
	trueLit     string
	falseLit    string

	// autoincrement decorates the rendered type of an autoincrementing
	// column. inlinePK reports that the clause already declares the primary
	// key, so no table-level constraint is emitted.
	autoincrement func(c schema.Column, typ string) (clause string, inlinePK bool, err error)
	addKeyword    string
	addWrap       bool
	dropColumn    func(d *generic, table, column string) string
	alter         func(d *generic, table string, c schema.Column) ([]string, error)

	tablesQuery  string
	columnsQuery func(d *generic, schemaName, table string) (string, []any)
}

func (d *generic) Name() string { return d.name }

func (d *generic) quoteOne(s string) string {
	return d.open + strings.ReplaceAll(s, d.close, d.close+d.close) + d.close
}

func (d *generic) Quote(ident string) string {
	schemaName, table := SplitTable(ident)
	if schemaName == "" {
		return d.quoteOne(table)
	}
	return d.quoteOne(schemaName) + "." + d.quoteOne(table)
}

func (d *generic) Placeholder(n int) string { return d.placeholder(n) }

func (d *generic) literal(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return d.trueLit
		}
		return d.falseLit
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return fmt.Sprint(v)
}

// columnDef renders one column definition. all is the full column set, used
// to resolve implicit autoincrement.
func (d *generic) columnDef(c schema.Column, all []schema.Column) (string, bool, error) {
	typ := d.typeSQL(c)
	inlinePK := false
	if schema.AutoIncrements(c, all) {
		clause, inline, err := d.autoincrement(c, typ)
		if err != nil {
			return "", false, err
		}
		typ, inlinePK = clause, inline
		if inlinePK && primaryKeyCount(all) > 1 {
			return "", false, unsupported(d.name, "autoincrement outside a sole INTEGER PRIMARY KEY")
		}
	}

	var b strings.Builder
	b.WriteString(d.Quote(c.Name))
	b.WriteString(" ")
	b.WriteString(typ)
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(d.literal(c.Default))
	}
	if !c.IsNullable() && !inlinePK {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	return b.String(), inlinePK, nil
}

func primaryKeyCount(cols []schema.Column) int {
	n := 0
	for _, c := range cols {
		if c.PrimaryKey {
			n++
		}
	}
	return n
}

func (d *generic) CreateTable(table string, cols []schema.Column) ([]string, error) {
	defs := make([]string, 0, len(cols)+1)
	var pks []string
	inline := false
	for _, c := range cols {
		def, inlinePK, err := d.columnDef(c, cols)
		if err != nil {
			return nil, err
		}
		inline = inline || inlinePK
		defs = append(defs, def)
		if c.PrimaryKey {
			pks = append(pks, d.Quote(c.Name))
		}
	}
	if len(pks) > 0 && !inline {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pks, ", ")+")")
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(table), strings.Join(defs, ", "))}
	_, base := SplitTable(table)
	for _, c := range cols {
		if c.Index {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				d.quoteOne("ix_"+base+"_"+c.Name), d.Quote(table), d.Quote(c.Name)))
		}
	}
	return stmts, nil
}

func (d *generic) DropTable(table string) string {
	return "DROP TABLE " + d.Quote(table)
}

func (d *generic) AddColumn(table string, col schema.Column) (string, error) {
	def, inlinePK, err := d.columnDef(col, []schema.Column{col})
	if err != nil {
		return "", err
	}
	if col.PrimaryKey && !inlinePK {
		def += " PRIMARY KEY"
	}
	if d.addWrap {
		def = "(" + def + ")"
	}
	return fmt.Sprintf("ALTER TABLE %s %s %s", d.Quote(table), d.addKeyword, def), nil
}

func (d *generic) DropColumn(table, column string) string {
	if d.dropColumn != nil {
		return d.dropColumn(d, table, column)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(table), d.Quote(column))
}

func (d *generic) AlterColumn(table string, col schema.Column) ([]string, error) {
	return d.alter(d, table, col)
}

func (d *generic) Insert(table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func (d *generic) Delete(table string, columns []string, nulls []bool) string {
	conds := make([]string, len(columns))
	n := 0
	for i, c := range columns {
		if i < len(nulls) && nulls[i] {
			conds[i] = d.Quote(c) + " IS NULL"
			continue
		}
		n++
		conds[i] = d.Quote(c) + " = " + d.placeholder(n)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", d.Quote(table), strings.Join(conds, " AND "))
}

func (d *generic) TablesQuery() string { return d.tablesQuery }

func (d *generic) ColumnsQuery(schemaName, table string) (string, []any) {
	return d.columnsQuery(d, schemaName, table)
}

func unsupported(engine, what string) error {
	return fmt.Errorf("%w: %s %s", ErrUnsupported, engine, what)
}

func withLength(base string, c schema.Column, unbounded string) string {
	if c.Length > 0 {
		return fmt.Sprintf("%s(%d)", base, c.Length)
	}
	return unbounded
}

func withPrecision(base string, c schema.Column) string {
	switch {
	case c.Precision > 0 && c.Scale > 0:
		return fmt.Sprintf("%s(%d, %d)", base, c.Precision, c.Scale)
	case c.Precision > 0:
		return fmt.Sprintf("%s(%d)", base, c.Precision)
	}
	return base
}

func dollar(n int) string  { return "$" + strconv.Itoa(n) }
func question(int) string  { return "?" }
func atParam(n int) string { return "@p" + strconv.Itoa(n) }
