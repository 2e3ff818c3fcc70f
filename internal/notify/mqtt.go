// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sqlworker/internal/config"
	"sqlworker/internal/logging"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
)

// MQTT publishes notifications to a topic on an MQTT broker.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTT connects to the broker in cfg.URL.
func NewMQTT(cfg config.Notify, logger *slog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	tk := client.Connect()
	if !tk.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", logging.Mask(cfg.URL))
	}
	if err := tk.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", logging.Mask(cfg.URL), err)
	}
	return &MQTT{client: client, topic: cfg.Topic, qos: byte(cfg.QoS)}, nil
}

func (m *MQTT) Notify(ctx context.Context, title, message, status, correlationID string) error {
	data, err := encode(title, message, status, correlationID)
	if err != nil {
		return err
	}
	tk := m.client.Publish(m.topic, m.qos, false, data)
	select {
	case <-tk.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return errors.New("mqtt publish: timeout")
	}
	return tk.Error()
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
