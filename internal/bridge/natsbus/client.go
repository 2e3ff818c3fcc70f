// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package natsbus implements the bridge over NATS JetStream.
//
// Requests are pulled one at a time from a durable consumer on the request
// stream and acknowledged explicitly. Responses are plain core-NATS
// publications to the request's reply subject, with the correlation id
// carried in a header.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"sqlworker/internal/bridge"
	"sqlworker/internal/bridge/model"
	"sqlworker/internal/config"
	"sqlworker/internal/logging"
)

// Header names read from requests and written to responses.
const (
	HeaderCorrelationID = "Correlation-Id"
	HeaderReplyTo       = "Reply-To"
)

var _ bridge.Bus = (*Client)(nil)

// Client is a JetStream-backed bridge.Bus.
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	sub    *nats.Subscription
	cfg    config.Bus
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*nats.Msg
}

// Connect dials the NATS server, ensures the request stream when configured
// to, and binds a durable pull consumer on the request subject.
func Connect(ctx context.Context, cfg config.Bus, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name("sqlworker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("bus reconnected", "url", c.ConnectedUrlRedacted())
		}),
	}
	switch {
	case cfg.Creds != "":
		opts = append(opts, nats.UserCredentials(cfg.Creds))
	case cfg.Token != "":
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.User != "":
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", logging.Mask(cfg.URL), err)
	}
	c, err := setup(ctx, conn, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func setup(ctx context.Context, conn *nats.Conn, cfg config.Bus, logger *slog.Logger) (*Client, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if cfg.CreateStream {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := ensureStream(ctx, js, cfg); err != nil {
			return nil, err
		}
	}
	sub, err := js.PullSubscribe(cfg.Subject, cfg.Durable, nats.BindStream(cfg.Stream))
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s on stream %s: %w", cfg.Subject, cfg.Stream, err)
	}
	logger.Info("bus connected",
		"url", conn.ConnectedUrlRedacted(),
		"stream", cfg.Stream,
		"subject", cfg.Subject,
		"durable", cfg.Durable)

	return &Client{
		conn:    conn,
		js:      js,
		sub:     sub,
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]*nats.Msg),
	}, nil
}

func ensureStream(ctx context.Context, js nats.JetStreamContext, cfg config.Bus) error {
	_, err := js.StreamInfo(cfg.Stream, nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream %s: %w", cfg.Stream, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
		Storage:  nats.FileStorage,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// Next blocks until one request is available or ctx is done.
func (c *Client) Next(ctx context.Context) (model.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return model.Delivery{}, err
		}
		msgs, err := c.sub.Fetch(1, nats.MaxWait(c.cfg.FetchWait))
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		if err != nil {
			return model.Delivery{}, fmt.Errorf("fetch: %w", err)
		}
		if len(msgs) == 0 {
			continue
		}
		return c.track(msgs[0]), nil
	}
}

func (c *Client) track(msg *nats.Msg) model.Delivery {
	d := delivery(msg)
	if meta, err := msg.Metadata(); err == nil {
		d.Tag = strconv.FormatUint(meta.Sequence.Stream, 10)
	} else {
		d.Tag = uuid.NewString()
	}
	c.mu.Lock()
	c.pending[d.Tag] = msg
	c.mu.Unlock()
	return d
}

// delivery extracts the correlation id and reply destination from headers,
// falling back to the envelope fields. A request with no correlation id is
// assigned a fresh one.
func delivery(msg *nats.Msg) model.Delivery {
	d := model.Delivery{Body: msg.Data}
	if msg.Header != nil {
		d.CorrelationID = msg.Header.Get(HeaderCorrelationID)
		d.ReplyTo = msg.Header.Get(HeaderReplyTo)
	}
	if d.CorrelationID == "" || d.ReplyTo == "" {
		var env model.Envelope
		if json.Unmarshal(msg.Data, &env) == nil {
			if d.CorrelationID == "" {
				d.CorrelationID = env.CorrelationID
			}
			if d.ReplyTo == "" {
				d.ReplyTo = env.ReplyTo
			}
		}
	}
	if d.CorrelationID == "" {
		d.CorrelationID = uuid.NewString()
	}
	return d
}

// Ack acknowledges a delivery returned by Next. Each tag can be acknowledged
// once.
func (c *Client) Ack(_ context.Context, tag string) error {
	c.mu.Lock()
	msg, ok := c.pending[tag]
	delete(c.pending, tag)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown delivery tag %q", tag)
	}
	return msg.AckSync()
}

// Publish sends payload to replyTo with the correlation id header.
func (c *Client) Publish(_ context.Context, replyTo, correlationID string, payload []byte) error {
	if replyTo == "" {
		return bridge.ErrNoReplyTo
	}
	msg := nats.NewMsg(replyTo)
	msg.Header.Set(HeaderCorrelationID, correlationID)
	msg.Data = payload
	return c.conn.PublishMsg(msg)
}

// Output returns a sink publishing to <output_subject>.<correlationID>.
func (c *Client) Output(correlationID string) bridge.OutputSink {
	return &output{
		conn:          c.conn,
		subject:       c.cfg.OutputSubject + "." + correlationID,
		correlationID: correlationID,
		logger:        c.logger,
	}
}

// Conn exposes the underlying connection so notifiers can share it.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Close flushes pending publications and closes the connection. The durable
// consumer is left in place for the next worker.
func (c *Client) Close() error {
	if c.conn.IsClosed() {
		return nil
	}
	err := c.conn.FlushTimeout(2 * time.Second)
	c.conn.Close()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

type output struct {
	conn          *nats.Conn
	subject       string
	correlationID string
	logger        *slog.Logger
}

func (o *output) Error(text string) {
	msg := nats.NewMsg(o.subject)
	msg.Header.Set(HeaderCorrelationID, o.correlationID)
	msg.Data = []byte(text)
	if err := o.conn.PublishMsg(msg); err != nil {
		o.logger.Warn("could not publish output", "subject", o.subject, "error", err)
	}
}
