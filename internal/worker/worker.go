// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package worker runs the consume loop: one delivery at a time, each taken
// through the response protocol to its terminal status before the next is
// fetched.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"sqlworker/internal/bridge"
	"sqlworker/internal/bridge/model"
	"sqlworker/internal/logging"
)

// Bus is the part of the bridge the loop consumes from.
type Bus interface {
	bridge.Source
	Output(correlationID string) bridge.OutputSink
}

// Handler runs one delivery to its terminal status. *protocol.Emitter
// satisfies it.
type Handler interface {
	Handle(ctx context.Context, d model.Delivery, out bridge.OutputSink) model.Status
}

// Health receives serving status changes.
type Health interface {
	Serve() error
	SetServing(serving bool)
	Shutdown(ctx context.Context)
}

// Stats counts processed requests by terminal status.
type Stats struct {
	Completed int
	Failed    int
}

// Worker is the consume loop.
type Worker struct {
	bus     Bus
	handler Handler
	logger  *slog.Logger
	stats   Stats
}

func New(bus Bus, handler Handler, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Worker{bus: bus, handler: handler, logger: logger}
}

// Run processes deliveries until ctx is done, then returns nil. A request in
// flight when ctx is cancelled is finished first, and a delivery the bus has
// already handed out is always handled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Waiting for requests")
	for {
		d, err := w.bus.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker stopped", "completed", w.stats.Completed, "failed", w.stats.Failed)
				return nil
			}
			return err
		}

		w.logger.Debug("Request received", "correlation_id", d.CorrelationID, "tag", d.Tag)
		switch w.handler.Handle(ctx, d, w.bus.Output(d.CorrelationID)) {
		case model.StatusCompleted:
			w.stats.Completed++
		default:
			w.stats.Failed++
		}
	}
}

// Stats returns the counters. It is not safe to call while Run is active.
func (w *Worker) Stats() Stats {
	return w.stats
}

// Supervise runs the loop and, when h is non-nil, the health server next to
// it. The health status is SERVING exactly while the loop runs. The first
// failure of either stops both.
func Supervise(ctx context.Context, w *Worker, h Health) error {
	g, gctx := errgroup.WithContext(ctx)

	if h != nil {
		g.Go(h.Serve)
	}
	g.Go(func() error {
		if h != nil {
			h.SetServing(true)
			defer func() {
				h.SetServing(false)
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				h.Shutdown(shutdownCtx)
			}()
		}
		return w.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
