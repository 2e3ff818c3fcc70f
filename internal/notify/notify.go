// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package notify sends human-facing alerts about finished requests.
// Notifications are best effort: callers log a failed Notify and carry on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sqlworker/internal/config"
	"sqlworker/internal/logging"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, title, message, status, correlationID string) error
	Close() error
}

// Notification is the JSON payload published by the bus notifiers.
type Notification struct {
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	CorrelationID string    `json:"correlationId"`
	Time          time.Time `json:"time"`
}

func encode(title, message, status, correlationID string) ([]byte, error) {
	return json.Marshal(Notification{
		Title:         title,
		Message:       message,
		Status:        status,
		CorrelationID: correlationID,
		Time:          time.Now().UTC(),
	})
}

// New builds the configured notifier. conn is the bus connection shared by
// the nats driver; it may be nil for the other drivers.
func New(cfg config.Notify, conn *nats.Conn, logger *slog.Logger) (Notifier, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	switch cfg.Driver {
	case "", "log":
		return NewLog(logger), nil
	case "nats":
		if conn == nil {
			return nil, fmt.Errorf("nats notifier needs a bus connection")
		}
		return NewNATS(conn, cfg.Subject), nil
	case "mqtt":
		return NewMQTT(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// Log writes notifications to the logger at debug level.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, title, message, status, correlationID string) error {
	l.logger.Debug(title, "message", message, "status", status, "correlation_id", correlationID)
	return nil
}

func (l *Log) Close() error { return nil }

// NATS publishes notifications to a subject over a shared connection.
type NATS struct {
	conn    *nats.Conn
	subject string
}

func NewNATS(conn *nats.Conn, subject string) *NATS {
	return &NATS{conn: conn, subject: subject}
}

func (n *NATS) Notify(_ context.Context, title, message, status, correlationID string) error {
	data, err := encode(title, message, status, correlationID)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(n.subject)
	msg.Header.Set("Correlation-Id", correlationID)
	msg.Data = data
	return n.conn.PublishMsg(msg)
}

// Close does nothing; the connection belongs to the bus.
func (n *NATS) Close() error { return nil }
