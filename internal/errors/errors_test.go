// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestE_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *E
		want string
	}{
		{
			name: "message only",
			err:  New(Validation, "No valid subcommand given. Nothing to do!"),
			want: "No valid subcommand given. Nothing to do!",
		},
		{
			name: "wrapped engine error",
			err:  Wrap(OperationFailure, "Could not create the table t1", stderrors.New("table t1 already exists")),
			want: "Could not create the table t1: table t1 already exists",
		},
		{
			name: "missing input",
			err:  MissingInput("name"),
			want: "Missing input name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	base := New(ConnectionFailure, "Could not connect to the database requested.")

	assert.Equal(t, ConnectionFailure, KindOf(base))
	assert.Equal(t, ConnectionFailure, KindOf(fmt.Errorf("resolve: %w", base)))
	assert.Equal(t, OperationFailure, KindOf(stderrors.New("plain")))
	assert.True(t, Is(fmt.Errorf("outer: %w", MissingInput("sql")), Validation))
	assert.False(t, Is(base, Validation))
}

func TestE_Unwrap(t *testing.T) {
	cause := stderrors.New("no such table: t")
	err := Wrap(OperationFailure, "Could not drop the table t", cause)

	assert.True(t, stderrors.Is(err, cause))
}
