// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"sort"
	"strings"
)

// splitScheme returns the lower-cased engine part of the scheme ("postgresql"
// for "postgresql+psycopg2://...") and the remainder after "://".
func splitScheme(dsn string) (engine, remainder string, ok bool) {
	i := strings.Index(dsn, "://")
	if i <= 0 {
		return "", "", false
	}
	engine = strings.ToLower(dsn[:i])
	if plus := strings.Index(engine, "+"); plus >= 0 {
		engine = engine[:plus]
	}
	return engine, dsn[i+3:], true
}

// DetectDBType detects the database type from a DSN string
func DetectDBType(dsn string) DBType {
	engine, _, ok := splitScheme(strings.TrimSpace(dsn))
	if !ok {
		return DBTypeUnknown
	}
	switch engine {
	case "postgres", "postgresql", "pgx":
		return DBTypePostgreSQL
	case "sqlite", "sqlite3":
		return DBTypeSQLite
	case "mssql", "sqlserver":
		return DBTypeSQLServer
	case "hana", "hdb":
		return DBTypeHANA
	case "duckdb":
		return DBTypeDuckDB
	}
	return DBTypeUnknown
}

// ResolverFor returns the resolver of a database type.
func ResolverFor(t DBType) (Resolver, bool) {
	switch t {
	case DBTypePostgreSQL:
		return NewPostgreSQLResolver(), true
	case DBTypeSQLite:
		return NewSQLiteResolver(), true
	case DBTypeSQLServer:
		return NewSQLServerResolver(), true
	case DBTypeHANA:
		return NewHANAResolver(), true
	case DBTypeDuckDB:
		return NewDuckDBResolver(), true
	}
	return nil, false
}

func resolverFor(dsn string) (Resolver, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a valid database connection string")
	}
	r, ok := ResolverFor(DetectDBType(dsn))
	if !ok {
		return nil, NewParseError(dsn, "unknown database type",
			"use postgresql://, sqlite:///, mssql://, hana:// or duckdb:///")
	}
	return r, nil
}

// Resolve parses a connection URI and returns the driver name and data source
// string to pass to sql.Open. extra parameters are merged into the driver
// parameters, overriding those found in the URI.
// This is the main entry point for DSN parsing
func Resolve(dsn string, extra map[string]string) (*Target, error) {
	dsn = strings.TrimSpace(dsn)
	r, err := resolverFor(dsn)
	if err != nil {
		return nil, err
	}
	info, err := r.Parse(dsn)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		info.Params[k] = v
	}
	ds, err := r.Normalize(info)
	if err != nil {
		return nil, err
	}
	return &Target{Type: info.Type, Driver: r.Driver(), DataSource: ds, Info: info}, nil
}

// Parse parses a DSN string and returns the normalized driver data source.
func Parse(dsn string) (string, error) {
	t, err := Resolve(dsn, nil)
	if err != nil {
		return "", err
	}
	return t.DataSource, nil
}

// Validate validates a DSN string without normalizing it
func Validate(dsn string) error {
	r, err := resolverFor(strings.TrimSpace(dsn))
	if err != nil {
		return err
	}
	return r.Validate(strings.TrimSpace(dsn))
}

// ParseInfo parses a DSN string and returns detailed DSN info
// Useful for inspecting connection details
func ParseInfo(dsn string) (*DSNInfo, error) {
	r, err := resolverFor(strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	return r.Parse(strings.TrimSpace(dsn))
}

// encodeParams renders params in key order so normalized strings are stable.
func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(parts, "&")
}

// parseQuery splits a raw query string without failing on unescaped values.
func parseQuery(raw string, into map[string]string) {
	for _, param := range strings.Split(raw, "&") {
		if param == "" {
			continue
		}
		kv := strings.SplitN(param, "=", 2)
		key, err := url.QueryUnescape(kv[0])
		if err != nil {
			key = kv[0]
		}
		val := ""
		if len(kv) == 2 {
			if v, err := url.QueryUnescape(kv[1]); err == nil {
				val = v
			} else {
				val = kv[1]
			}
		}
		into[key] = val
	}
}
