// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		sql  string
		want StatementKind
	}{
		{"INSERT INTO t VALUES (1)", KindRows},
		{"  delete from t", KindRows},
		{"Update t set a = 1", KindRows},
		{"MERGE INTO t USING s ON (t.id = s.id) WHEN MATCHED THEN DELETE", KindRows},
		{"CREATE TABLE t (a int)", KindDDL},
		{"-- comment\nALTER TABLE t ADD b int", KindDDL},
		{"/* c */ drop table t", KindDDL},
		{"truncate t", KindDDL},
		{"SELECT 1", KindOther},
		{"(SELECT 1) UNION (SELECT 2)", KindOther},
		{"WITH x AS (SELECT 1) SELECT * FROM x", KindOther},
		{"WITH old AS (SELECT id FROM t WHERE a < 5) DELETE FROM t WHERE id IN (SELECT id FROM old)", KindRows},
		{"with recursive n(i) as (select 1 union all select i+1 from n where i < 3) insert into t select i from n", KindRows},
		{"WITH \"select\" AS (SELECT 1) -- update\nUPDATE t SET a = 2", KindRows},
		{"WITH x AS (DELETE FROM t RETURNING *) SELECT * FROM x", KindOther},
		{"WITH x AS (SELECT 1", KindOther},
		{"doesnotexist", KindOther},
		{"", KindOther},
		{"-- only a comment", KindOther},
		{"/* unterminated", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sql))
		})
	}
}

func TestBindValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"integer", json.Number("42"), int64(42)},
		{"float", json.Number("1.5"), 1.5},
		{"huge", json.Number("1e400"), nil},
		{"string", "x", "x"},
		{"bool", true, true},
		{"null", nil, nil},
		{"object", map[string]any{"k": json.Number("1")}, `{"k":1}`},
		{"array", []any{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindValue(tt.in)
			if tt.name == "huge" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams(nil)
	require.NoError(t, err)
	assert.False(t, p.Has("database"))

	p, err = ParseParams(json.RawMessage(`{"database": "main", "sql": null, "columns": {"b": {"type": "Integer"}, "a": {"type": "String"}}}`))
	require.NoError(t, err)
	assert.True(t, p.Has("database"))
	assert.False(t, p.Has("sql"))

	d, err := p.Descriptor("columns")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, d.Names())

	_, err = ParseParams(json.RawMessage(`[1, 2]`))
	assert.Error(t, err)
}
