// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package terminal

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"line", "postgres://u:p@h/db\n", "postgres://u:p@h/db"},
		{"no newline", "  sqlite:///tmp/x.db  ", "sqlite:///tmp/x.db"},
		{"only first line", "a\nb\n", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := ReadSecret(strings.NewReader(tt.input), &out, "URI: ")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "URI: ", out.String())
		})
	}

	_, err := ReadSecret(strings.NewReader(""), io.Discard, "URI: ")
	assert.ErrorIs(t, err, io.EOF)
}
