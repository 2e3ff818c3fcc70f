// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package journal records the outcome of every processed request so it can
// be looked up later by correlation id. Journal writes never affect the
// response a requester receives.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sqlworker/internal/config"
)

// ErrNotFound is returned by Get when no entry exists for an id.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one request outcome.
type Entry struct {
	CorrelationID string
	Subcommand    string
	Database      string
	Status        string
	Data          string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration is the time the request took.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Journal stores entries.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Get(ctx context.Context, correlationID string) (Entry, error)
	Close() error
}

// Open builds the configured journal.
func Open(ctx context.Context, cfg config.Journal) (Journal, error) {
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "redis":
		return OpenRedis(ctx, cfg)
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Get(context.Context, string) (Entry, error) { return Entry{}, ErrNotFound }

func (Nop) Close() error { return nil }
