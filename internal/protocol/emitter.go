// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package protocol drives the lifecycle of one request:
//
//	received -> started -> completed | failed
//
// The emitter acknowledges the delivery exactly once, publishes a started
// status, dispatches the request and publishes exactly one terminal status.
// Every error and panic below it ends in a failed status; nothing escapes.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"sqlworker/internal/bridge"
	"sqlworker/internal/bridge/model"
	werrors "sqlworker/internal/errors"
	"sqlworker/internal/journal"
	"sqlworker/internal/logging"
	"sqlworker/internal/notify"
	"sqlworker/internal/router"
	"sqlworker/internal/sqlexec"
)

// Notification texts.
const (
	TitleCompleted   = "SQLWorker Executed Successfully"
	TitleFailed      = "SQLWorker Failed"
	messageCompleted = "SQLWorker successfully executed %s. See logs."
)

// MsgInvalidEnvelope is reported when a request body cannot be decoded.
const MsgInvalidEnvelope = "Invalid request envelope"

// Dispatcher runs one request. *router.Router satisfies it.
type Dispatcher interface {
	Route(ctx context.Context, params sqlexec.Params, correlationID string, output sqlexec.OutputSink) (string, error)
}

// Emitter runs requests through the response protocol.
type Emitter struct {
	transport  bridge.Transport
	dispatcher Dispatcher
	notifier   notify.Notifier
	journal    journal.Journal
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithNotifier sets the side-channel notifier. The default logs at debug.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Emitter) { e.notifier = n }
}

// WithJournal sets the outcome journal. The default discards entries.
func WithJournal(j journal.Journal) Option {
	return func(e *Emitter) { e.journal = j }
}

// New creates an Emitter.
func New(transport bridge.Transport, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Emitter {
	if logger == nil {
		logger = logging.Discard()
	}
	e := &Emitter{
		transport:  transport,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = notify.NewLog(logger)
	}
	if e.journal == nil {
		e.journal = journal.Nop{}
	}
	return e
}

// Handle processes d and returns its terminal status. The request runs to
// completion even if ctx is cancelled while it is in flight.
func (e *Emitter) Handle(ctx context.Context, d model.Delivery, out bridge.OutputSink) model.Status {
	ctx = context.WithoutCancel(ctx)
	if out == nil {
		out = discardOutput{}
	}
	logger := e.logger.With("correlation_id", d.CorrelationID)
	entry := journal.Entry{CorrelationID: d.CorrelationID, StartedAt: e.now()}

	if err := e.transport.Ack(ctx, d.Tag); err != nil {
		logger.Warn("could not acknowledge delivery", "tag", d.Tag, "error", err)
	}
	e.publish(ctx, logger, d, model.Response{Status: model.StatusStarted})

	params, result, err := e.dispatch(ctx, d, out)
	entry.Subcommand = router.Subcommand(params)
	entry.Database, _ = params.String("database")

	status := model.StatusCompleted
	if err != nil {
		status = model.StatusFailed
		msg := err.Error()
		logger.Error("Failure: "+msg, "kind", werrors.KindOf(err), "subcommand", entry.Subcommand)
		e.publish(ctx, logger, d, model.Response{Status: status})
		e.notify(ctx, logger, TitleFailed, msg, status, d.CorrelationID)
		out.Error(msg)
		entry.Error = msg
	} else {
		logger.Info("Request completed", "subcommand", entry.Subcommand, "result", result)
		e.publish(ctx, logger, d, model.Response{Status: status, Data: result})
		e.notify(ctx, logger, TitleCompleted, fmt.Sprintf(messageCompleted, entry.Subcommand), status, d.CorrelationID)
		entry.Data = result
	}

	entry.Status = string(status)
	entry.FinishedAt = e.now()
	if err := e.journal.Record(ctx, entry); err != nil {
		logger.Warn("could not record journal entry", "error", err)
	}
	return status
}

// dispatch decodes the envelope and routes it, converting a panic into an
// operation failure.
func (e *Emitter) dispatch(ctx context.Context, d model.Delivery, out bridge.OutputSink) (params sqlexec.Params, result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("handler panic", "panic", r, "stack", string(debug.Stack()))
			err = werrors.Newf(werrors.OperationFailure, "Unexpected failure: %v", r)
		}
	}()

	var env model.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		return nil, "", werrors.Wrap(werrors.Validation, MsgInvalidEnvelope, err)
	}
	params, err = sqlexec.ParseParams(env.Parameters)
	if err != nil {
		return nil, "", err
	}
	result, err = e.dispatcher.Route(ctx, params, d.CorrelationID, out)
	return params, result, err
}

func (e *Emitter) publish(ctx context.Context, logger *slog.Logger, d model.Delivery, resp model.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("could not encode response", "status", resp.Status, "error", err)
		return
	}
	err = e.transport.Publish(ctx, d.ReplyTo, d.CorrelationID, payload)
	switch {
	case errors.Is(err, bridge.ErrNoReplyTo):
		logger.Warn("no reply destination, response dropped", "status", resp.Status)
	case err != nil:
		logger.Warn("could not publish response", "status", resp.Status, "reply_to", d.ReplyTo, "error", err)
	}
}

func (e *Emitter) notify(ctx context.Context, logger *slog.Logger, title, message string, status model.Status, correlationID string) {
	if err := e.notifier.Notify(ctx, title, message, string(status), correlationID); err != nil {
		logger.Warn("could not send notification", "error", err)
	}
}

type discardOutput struct{}

func (discardOutput) Error(string) {}
