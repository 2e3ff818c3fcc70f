// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "sqlworker", "config.yaml"), got)

	_, statErr := os.Stat(filepath.Join(base, "sqlworker"))
	assert.True(t, os.IsNotExist(statErr), "config dir must not be created on lookup")
}

func TestStateDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_STATE_HOME", base)

	got, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "sqlworker"), got)

	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
