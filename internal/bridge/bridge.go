// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridge defines the transport seam between the message bus and the
// worker. A Source yields deliveries one at a time, a Transport acknowledges
// them and publishes responses, and an OutputSink carries error text back to
// the requester.
//
// The NATS JetStream implementation lives in the natsbus subpackage; this
// package also provides a writer-backed transport used to run one request
// from the command line.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"sqlworker/internal/bridge/model"
)

// ErrNoReplyTo is returned by Publish when a delivery has no reply destination.
var ErrNoReplyTo = errors.New("delivery has no reply destination")

// Transport acknowledges deliveries and publishes responses.
type Transport interface {
	// Ack acknowledges a delivery so it is never redelivered.
	Ack(ctx context.Context, tag string) error
	// Publish sends payload to replyTo, keyed by correlationID.
	Publish(ctx context.Context, replyTo, correlationID string, payload []byte) error
}

// Source yields inbound deliveries. Next blocks until a delivery arrives or
// ctx is done.
type Source interface {
	Next(ctx context.Context) (model.Delivery, error)
}

// OutputSink receives human-readable error text for one request.
type OutputSink interface {
	Error(msg string)
}

// Bus is a full message-bus connection.
type Bus interface {
	Source
	Transport
	// Output returns the error-output sink of a request.
	Output(correlationID string) OutputSink
	Close() error
}

// WriterTransport prints each published response as one JSON line.
// Acknowledgement is recorded but has no effect.
type WriterTransport struct {
	mu    sync.Mutex
	w     io.Writer
	acked map[string]bool
}

// NewWriterTransport creates a WriterTransport writing to w.
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w, acked: make(map[string]bool)}
}

func (t *WriterTransport) Ack(_ context.Context, tag string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.acked[tag] {
		return fmt.Errorf("delivery %s already acknowledged", tag)
	}
	t.acked[tag] = true
	return nil
}

func (t *WriterTransport) Publish(_ context.Context, replyTo, correlationID string, payload []byte) error {
	line, err := json.Marshal(struct {
		CorrelationID string          `json:"correlationId"`
		ReplyTo       string          `json:"replyTo,omitempty"`
		Response      json.RawMessage `json:"response"`
	}{correlationID, replyTo, payload})
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = fmt.Fprintln(t.w, string(line))
	return err
}

// WriterOutput writes error text to w, one line per message.
type WriterOutput struct {
	W io.Writer
}

func (o WriterOutput) Error(msg string) {
	fmt.Fprintln(o.W, msg)
}
