// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dialect

import (
	"fmt"

	"sqlworker/internal/schema"
)

// Postgres renders PostgreSQL SQL. Autoincrement uses the SERIAL family on
// create and identity columns on alter.
func Postgres() Dialect {
	return &generic{
		name:        "postgresql",
		open:        `"`,
		close:       `"`,
		placeholder: dollar,
		trueLit:     "TRUE",
		falseLit:    "FALSE",
		typeSQL: func(c schema.Column) string {
			switch c.Type {
			case schema.Integer:
				return "INTEGER"
			case schema.SmallInteger:
				return "SMALLINT"
			case schema.BigInteger:
				return "BIGINT"
			case schema.Boolean:
				return "BOOLEAN"
			case schema.Float:
				return withPrecision("FLOAT", schema.Column{Precision: c.Precision})
			case schema.Numeric:
				return withPrecision("NUMERIC", c)
			case schema.String, schema.Unicode:
				return withLength("VARCHAR", c, "VARCHAR")
			case schema.Text, schema.UnicodeText:
				return "TEXT"
			case schema.Date:
				return "DATE"
			case schema.DateTime:
				if c.Timezone {
					return "TIMESTAMP WITH TIME ZONE"
				}
				return "TIMESTAMP WITHOUT TIME ZONE"
			case schema.Time:
				return "TIME WITHOUT TIME ZONE"
			case schema.LargeBinary:
				return "BYTEA"
			case schema.JSON:
				return "JSONB"
			}
			return string(c.Type)
		},
		autoincrement: func(c schema.Column, _ string) (string, bool, error) {
			switch c.Type {
			case schema.SmallInteger:
				return "SMALLSERIAL", false, nil
			case schema.BigInteger:
				return "BIGSERIAL", false, nil
			}
			return "SERIAL", false, nil
		},
		addKeyword: "ADD COLUMN",
		alter: func(d *generic, table string, c schema.Column) ([]string, error) {
			t, col := d.Quote(table), d.Quote(c.Name)
			stmts := []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", t, col, d.typeSQL(c))}
			if c.IsNullable() {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", t, col))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", t, col))
			}
			if c.Autoincrement != nil {
				if *c.Autoincrement {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s ADD GENERATED BY DEFAULT AS IDENTITY", t, col))
				} else {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP IDENTITY IF EXISTS", t, col))
				}
			}
			return stmts, nil
		},
		tablesQuery: `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
			ORDER BY table_name`,
		columnsQuery: informationSchemaColumns("current_schema()", dollar),
	}
}

// SQLite renders SQLite SQL. SQLite cannot alter existing columns.
func SQLite() Dialect {
	return &generic{
		name:        "sqlite",
		open:        `"`,
		close:       `"`,
		placeholder: question,
		trueLit:     "1",
		falseLit:    "0",
		typeSQL: func(c schema.Column) string {
			switch c.Type {
			case schema.Integer:
				return "INTEGER"
			case schema.SmallInteger:
				return "SMALLINT"
			case schema.BigInteger:
				return "BIGINT"
			case schema.Boolean:
				return "BOOLEAN"
			case schema.Float:
				return "FLOAT"
			case schema.Numeric:
				return withPrecision("NUMERIC", c)
			case schema.String, schema.Unicode:
				return withLength("VARCHAR", c, "VARCHAR")
			case schema.Text, schema.UnicodeText:
				return "TEXT"
			case schema.Date:
				return "DATE"
			case schema.DateTime:
				return "DATETIME"
			case schema.Time:
				return "TIME"
			case schema.LargeBinary:
				return "BLOB"
			case schema.JSON:
				return "JSON"
			}
			return string(c.Type)
		},
		autoincrement: func(c schema.Column, typ string) (string, bool, error) {
			// An INTEGER primary key is already the rowid alias. The explicit
			// AUTOINCREMENT keyword is only legal inline on that column.
			if c.Autoincrement == nil {
				return typ, false, nil
			}
			if !c.PrimaryKey || c.Type != schema.Integer {
				return "", false, unsupported("sqlite", "autoincrement outside a sole INTEGER PRIMARY KEY")
			}
			return "INTEGER PRIMARY KEY AUTOINCREMENT", true, nil
		},
		addKeyword: "ADD COLUMN",
		alter: func(*generic, string, schema.Column) ([]string, error) {
			return nil, unsupported("sqlite", "cannot alter existing columns")
		},
		tablesQuery: `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`,
		columnsQuery: func(_ *generic, schemaName, table string) (string, []any) {
			const cols = `SELECT name, type, CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END`
			if schemaName != "" {
				return cols + ` FROM pragma_table_info(?, ?) ORDER BY cid`, []any{table, schemaName}
			}
			return cols + ` FROM pragma_table_info(?) ORDER BY cid`, []any{table}
		},
	}
}

// SQLServer renders Transact-SQL for go-mssqldb.
func SQLServer() Dialect {
	return &generic{
		name:        "sqlserver",
		open:        "[",
		close:       "]",
		placeholder: atParam,
		trueLit:     "1",
		falseLit:    "0",
		typeSQL: func(c schema.Column) string {
			switch c.Type {
			case schema.Integer:
				return "INTEGER"
			case schema.SmallInteger:
				return "SMALLINT"
			case schema.BigInteger:
				return "BIGINT"
			case schema.Boolean:
				return "BIT"
			case schema.Float:
				return withPrecision("FLOAT", schema.Column{Precision: c.Precision})
			case schema.Numeric:
				return withPrecision("NUMERIC", c)
			case schema.String:
				return withLength("VARCHAR", c, "VARCHAR(max)")
			case schema.Unicode:
				return withLength("NVARCHAR", c, "NVARCHAR(max)")
			case schema.Text:
				return "VARCHAR(max)"
			case schema.UnicodeText, schema.JSON:
				return "NVARCHAR(max)"
			case schema.Date:
				return "DATE"
			case schema.DateTime:
				if c.Timezone {
					return "DATETIMEOFFSET"
				}
				return "DATETIME2"
			case schema.Time:
				return "TIME"
			case schema.LargeBinary:
				return withLength("VARBINARY", c, "VARBINARY(max)")
			}
			return string(c.Type)
		},
		autoincrement: func(_ schema.Column, typ string) (string, bool, error) {
			return typ + " IDENTITY(1,1)", false, nil
		},
		addKeyword: "ADD",
		alter: func(d *generic, table string, c schema.Column) ([]string, error) {
			if c.Autoincrement != nil {
				return nil, unsupported("sqlserver", "cannot change IDENTITY on an existing column")
			}
			null := "NULL"
			if !c.IsNullable() {
				null = "NOT NULL"
			}
			return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s %s",
				d.Quote(table), d.Quote(c.Name), d.typeSQL(c), null)}, nil
		},
		tablesQuery: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_TYPE = 'BASE TABLE'
			ORDER BY TABLE_NAME`,
		columnsQuery: informationSchemaColumns("SCHEMA_NAME()", atParam),
	}
}

// HANA renders SAP HANA SQL for go-hdb.
func HANA() Dialect {
	return &generic{
		name:        "hana",
		open:        `"`,
		close:       `"`,
		placeholder: question,
		trueLit:     "TRUE",
		falseLit:    "FALSE",
		typeSQL: func(c schema.Column) string {
			switch c.Type {
			case schema.Integer:
				return "INTEGER"
			case schema.SmallInteger:
				return "SMALLINT"
			case schema.BigInteger:
				return "BIGINT"
			case schema.Boolean:
				return "BOOLEAN"
			case schema.Float:
				return "DOUBLE"
			case schema.Numeric:
				return withPrecision("DECIMAL", c)
			case schema.String:
				return withLength("VARCHAR", c, "VARCHAR(5000)")
			case schema.Unicode:
				return withLength("NVARCHAR", c, "NVARCHAR(5000)")
			case schema.Text:
				return "CLOB"
			case schema.UnicodeText, schema.JSON:
				return "NCLOB"
			case schema.Date:
				return "DATE"
			case schema.DateTime:
				return "TIMESTAMP"
			case schema.Time:
				return "TIME"
			case schema.LargeBinary:
				return "BLOB"
			}
			return string(c.Type)
		},
		autoincrement: func(_ schema.Column, typ string) (string, bool, error) {
			return typ + " GENERATED BY DEFAULT AS IDENTITY", false, nil
		},
		addKeyword: "ADD",
		addWrap:    true,
		dropColumn: func(d *generic, table, column string) string {
			return fmt.Sprintf("ALTER TABLE %s DROP (%s)", d.Quote(table), d.Quote(column))
		},
		alter: func(d *generic, table string, c schema.Column) ([]string, error) {
			if c.Autoincrement != nil {
				return nil, unsupported("hana", "cannot change identity on an existing column")
			}
			null := "NULL"
			if !c.IsNullable() {
				null = "NOT NULL"
			}
			return []string{fmt.Sprintf("ALTER TABLE %s ALTER (%s %s %s)",
				d.Quote(table), d.Quote(c.Name), d.typeSQL(c), null)}, nil
		},
		tablesQuery: `SELECT TABLE_NAME FROM SYS.TABLES
			WHERE SCHEMA_NAME = CURRENT_SCHEMA
			ORDER BY TABLE_NAME`,
		columnsQuery: func(_ *generic, schemaName, table string) (string, []any) {
			const cols = `SELECT COLUMN_NAME, DATA_TYPE_NAME, CASE WHEN IS_NULLABLE = 'TRUE' THEN 'YES' ELSE 'NO' END
				FROM SYS.TABLE_COLUMNS`
			if schemaName != "" {
				return cols + ` WHERE SCHEMA_NAME = ? AND TABLE_NAME = ? ORDER BY POSITION`, []any{schemaName, table}
			}
			return cols + ` WHERE SCHEMA_NAME = CURRENT_SCHEMA AND TABLE_NAME = ? ORDER BY POSITION`, []any{table}
		},
	}
}

// DuckDB renders DuckDB SQL. DuckDB has no autoincrement columns; sequences
// are left to ExecuteSQL.
func DuckDB() Dialect {
	return &generic{
		name:        "duckdb",
		open:        `"`,
		close:       `"`,
		placeholder: question,
		trueLit:     "TRUE",
		falseLit:    "FALSE",
		typeSQL: func(c schema.Column) string {
			switch c.Type {
			case schema.Integer:
				return "INTEGER"
			case schema.SmallInteger:
				return "SMALLINT"
			case schema.BigInteger:
				return "BIGINT"
			case schema.Boolean:
				return "BOOLEAN"
			case schema.Float:
				return "DOUBLE"
			case schema.Numeric:
				return withPrecision("DECIMAL", c)
			case schema.String, schema.Unicode, schema.Text, schema.UnicodeText:
				return "VARCHAR"
			case schema.Date:
				return "DATE"
			case schema.DateTime:
				if c.Timezone {
					return "TIMESTAMPTZ"
				}
				return "TIMESTAMP"
			case schema.Time:
				return "TIME"
			case schema.LargeBinary:
				return "BLOB"
			case schema.JSON:
				return "JSON"
			}
			return string(c.Type)
		},
		autoincrement: func(c schema.Column, typ string) (string, bool, error) {
			if c.Autoincrement == nil {
				return typ, false, nil
			}
			return "", false, unsupported("duckdb", "autoincrement columns")
		},
		addKeyword: "ADD COLUMN",
		alter: func(d *generic, table string, c schema.Column) ([]string, error) {
			if c.Autoincrement != nil && *c.Autoincrement {
				return nil, unsupported("duckdb", "autoincrement columns")
			}
			t, col := d.Quote(table), d.Quote(c.Name)
			stmts := []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", t, col, d.typeSQL(c))}
			if c.IsNullable() {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", t, col))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", t, col))
			}
			return stmts, nil
		},
		tablesQuery: `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
			ORDER BY table_name`,
		columnsQuery: informationSchemaColumns("current_schema()", question),
	}
}

// informationSchemaColumns builds the ANSI catalog query shared by engines
// that expose information_schema.columns.
func informationSchemaColumns(currentSchema string, ph func(int) string) func(*generic, string, string) (string, []any) {
	return func(_ *generic, schemaName, table string) (string, []any) {
		const cols = `SELECT column_name, data_type, is_nullable FROM information_schema.columns`
		if schemaName != "" {
			return fmt.Sprintf(`%s WHERE table_schema = %s AND table_name = %s ORDER BY ordinal_position`,
				cols, ph(1), ph(2)), []any{schemaName, table}
		}
		return fmt.Sprintf(`%s WHERE table_schema = %s AND table_name = %s ORDER BY ordinal_position`,
			cols, currentSchema, ph(1)), []any{table}
	}
}
