// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const memoryPath = ":memory:"

// fileResolver handles engines whose URI names a local file:
// engine:///relative.db, engine:////abs/path.db or engine:// for memory.
type fileResolver struct {
	dbType DBType
	driver string
	scheme string
}

// NewSQLiteResolver creates a resolver for sqlite:/// URIs (modernc.org/sqlite).
func NewSQLiteResolver() Resolver {
	return &fileResolver{dbType: DBTypeSQLite, driver: "sqlite", scheme: "sqlite"}
}

// NewDuckDBResolver creates a resolver for duckdb:/// URIs.
func NewDuckDBResolver() Resolver {
	return &fileResolver{dbType: DBTypeDuckDB, driver: "duckdb", scheme: "duckdb"}
}

func (r *fileResolver) Driver() string { return r.driver }

func (r *fileResolver) Parse(dsn string) (*DSNInfo, error) {
	if dsn == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a connection string like "+r.scheme+":///path/to.db")
	}
	_, remainder, ok := splitScheme(dsn)
	if !ok || DetectDBType(dsn) != r.dbType {
		return nil, NewParseError(dsn, "missing or invalid scheme", "use "+r.scheme+":///path/to.db")
	}

	info := &DSNInfo{
		Type:     r.dbType,
		Params:   make(map[string]string),
		Original: dsn,
	}
	if q := strings.Index(remainder, "?"); q >= 0 {
		parseQuery(remainder[q+1:], info.Params)
		remainder = remainder[:q]
	}

	switch {
	case remainder == "" || remainder == "/" || remainder == "/"+memoryPath:
		info.Path = memoryPath
	case strings.HasPrefix(remainder, "/"):
		// One slash separates the empty authority from the path.
		info.Path = remainder[1:]
	default:
		return nil, NewParseError(dsn, "file URI must not have a host", "use "+r.scheme+":///relative.db or "+r.scheme+":////absolute/path.db")
	}
	info.Database = info.Path
	return info, nil
}

func (r *fileResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}
	path := info.Path
	if path == memoryPath && r.dbType == DBTypeDuckDB {
		path = ""
	}
	if q := encodeParams(info.Params); q != "" {
		return path + "?" + q, nil
	}
	return path, nil
}

func (r *fileResolver) Validate(dsn string) error {
	_, err := r.Parse(dsn)
	return err
}
