// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestNew_JSONMasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Format: "json", Writer: &buf})

	log.With("uri", "postgres://app:s3cret@db:5432/jobs").
		Error("Failure: connect postgres://app:s3cret@db:5432/jobs",
			"err", errors.New("dial postgres://app:s3cret@db/jobs refused"),
			slog.Group("bus", "token", "token=abc"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	want := map[string]any{
		"msg": "Failure: connect postgres://*:*@db:5432/jobs",
		"uri": "postgres://*:*@db:5432/jobs",
		"err": "dial postgres://*:*@db/jobs refused",
	}
	for key, w := range want {
		if got := rec[key]; got != w {
			t.Errorf("record[%q] = %v, want %v", key, got, w)
		}
	}
	if got, w := rec["bus"], map[string]any{"token": "token=***"}; !reflect.DeepEqual(got, w) {
		t.Errorf("record[\"bus\"] = %v, want %v", got, w)
	}
	if strings.Contains(buf.String(), "s3cret") {
		t.Errorf("output leaks the password: %s", buf.String())
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Format: "json", Writer: &buf})

	log.Info("dropped")
	log.Warn("kept")

	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("New(level=warn) output = %q, want only the warning", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
