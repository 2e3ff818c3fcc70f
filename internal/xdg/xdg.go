// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xdg resolves XDG Base Directory paths for sqlworker.
// The worker looks for its default configuration file under the config
// directory and keeps local state (the SQLite outcome journal) under the state
// directory. Both fall back to the traditional dot-directories when the XDG
// environment variables are not set.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used below the XDG base directories.
const AppName = "sqlworker"

// ConfigDir returns the XDG config directory for sqlworker without creating it.
// It falls back to ~/.config/sqlworker when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for sqlworker.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/sqlworker when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	dir, err := resolve("XDG_STATE_HOME", filepath.Join(".local", "state"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}

// ConfigFile returns the default configuration file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func resolve(env, homeRel string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, homeRel)
	}
	return filepath.Join(base, AppName), nil
}
