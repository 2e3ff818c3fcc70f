// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlworker/internal/config"
	werrors "sqlworker/internal/errors"
	"sqlworker/internal/keychain"
)

// sqliteFile creates a database file holding the table used across tests.
func sqliteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE t (a INTEGER, b INTEGER NOT NULL)`)
	require.NoError(t, err)
	return path
}

func resolverFor(uri string) *Resolver {
	return NewResolver(map[string]config.Database{"main": {URI: uri}}, nil, nil)
}

func TestResolve_ReflectsTables(t *testing.T) {
	r := resolverFor("sqlite:///" + sqliteFile(t))

	s, err := r.Resolve(context.Background(), "main")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "sqlite", s.Dialect.Name())
	assert.Equal(t, []string{"t"}, s.Catalog.Tables())

	tbl, err := s.Catalog.Table(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.ColumnNames())
	a, _ := tbl.Column("a")
	b, _ := tbl.Column("b")
	assert.True(t, a.Nullable)
	assert.False(t, b.Nullable)

	_, err = s.Catalog.Table(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoSuchTable)
}

func TestResolve_UnknownDatabase(t *testing.T) {
	_, err := resolverFor("sqlite://").Resolve(context.Background(), "other")
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.UnknownDatabase))
	assert.Equal(t, MsgUnknownDatabase, err.Error())
}

func TestResolve_ConnectionFailure(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"missing directory", "sqlite:///" + filepath.Join(t.TempDir(), "nope", "sub", "x.db")},
		{"unsupported engine", "mysql://app@h/db"},
		{"keyring without store", "keyring:main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolverFor(tt.uri).Resolve(context.Background(), "main")
			require.Error(t, err)
			assert.True(t, werrors.Is(err, werrors.ConnectionFailure))
			assert.Contains(t, err.Error(), MsgConnectionFailure)
		})
	}
}

func TestResolve_KeyringURI(t *testing.T) {
	store := keychain.NewWithKeyring(keyring.NewArrayKeyring(nil))
	require.NoError(t, store.SaveDBURI("prod", "sqlite:///"+sqliteFile(t)))

	r := NewResolver(map[string]config.Database{"main": {URI: "keyring:prod"}}, store, nil)
	s, err := r.Resolve(context.Background(), "main")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"t"}, s.Catalog.Tables())
}

func TestInTx_CommitsAndRollsBack(t *testing.T) {
	r := resolverFor("sqlite:///" + sqliteFile(t))
	s, err := r.Resolve(context.Background(), "main")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO t (a, b) VALUES (?, ?)`, 1, 1)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO t (a, b) VALUES (?, ?)`, 2, 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
}
