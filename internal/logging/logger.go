// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Options selects the logger's level, encoding and destination.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Format is "text" (pterm, human readable) or "json".
	Format string
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New builds the process logger. Text output goes through pterm's slog handler,
// JSON output through slog's JSON handler. Both are wrapped so that every
// message and string attribute is masked.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := ParseLevel(opts.Level)

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		pl := pterm.DefaultLogger.
			WithWriter(w).
			WithLevel(ptermLevel(level)).
			WithTime(true)
		h = pterm.NewSlogHandler(pl)
	}
	return slog.New(&maskingHandler{next: h})
}

// ParseLevel maps a configuration string to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ptermLevel(l slog.Level) pterm.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case l <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case l <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type maskingHandler struct {
	next slog.Handler
}

func (h *maskingHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *maskingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Mask(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &maskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{next: h.next.WithGroup(name)}
}

func maskAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Mask(v.String()))
	case slog.KindGroup:
		group := v.Group()
		masked := make([]any, len(group))
		for i, g := range group {
			masked[i] = maskAttr(g)
		}
		return slog.Group(a.Key, masked...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, Mask(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
