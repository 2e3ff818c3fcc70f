// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package router validates a request's subcommand against the fixed
// allow-list and dispatches it to exactly one operation handler.
package router

import (
	"context"
	"log/slog"
	"sort"

	werrors "sqlworker/internal/errors"
	"sqlworker/internal/logging"
	"sqlworker/internal/sqlexec"
)

// MsgNoSubcommand is reported when the subcommand is missing or unknown.
const MsgNoSubcommand = "No valid subcommand given. Nothing to do!"

// Subcommands is the allow-list, in documentation order.
var Subcommands = []string{
	"CreateTable",
	"DropTable",
	"AddTableColumns",
	"DropTableColumns",
	"AlterTableColumns",
	"ExecuteSQL",
	"Insert",
	"Delete",
}

// Router dispatches requests by subcommand.
type Router struct {
	handlers map[string]sqlexec.Handler
	logger   *slog.Logger
}

// New builds a router over handlers. Handlers for names outside the
// allow-list are ignored; allow-listed names without a handler are rejected
// like unknown ones.
func New(handlers map[string]sqlexec.Handler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.Discard()
	}
	allowed := make(map[string]sqlexec.Handler, len(Subcommands))
	for _, name := range Subcommands {
		if h, ok := handlers[name]; ok {
			allowed[name] = h
		}
	}
	return &Router{handlers: allowed, logger: logger}
}

// Subcommand extracts the subcommand name from params, or "" when absent
// or not a string.
func Subcommand(params sqlexec.Params) string {
	s, err := params.String("subcommand")
	if err != nil {
		return ""
	}
	return s
}

// Route runs the handler selected by params' subcommand. An unknown or
// missing subcommand fails with a validation error and no handler runs.
func (r *Router) Route(ctx context.Context, params sqlexec.Params, correlationID string, output sqlexec.OutputSink) (string, error) {
	subcommand := Subcommand(params)
	h, ok := r.handlers[subcommand]
	if !ok {
		return "", werrors.New(werrors.Validation, MsgNoSubcommand)
	}
	r.logger.Info("Executing subcommand", "subcommand", subcommand, "correlation_id", correlationID)
	return h(ctx, sqlexec.Request{
		CorrelationID: correlationID,
		Params:        params,
		Output:        output,
	})
}

// Supported returns the subcommands this router will dispatch, sorted.
func (r *Router) Supported() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
