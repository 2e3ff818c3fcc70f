// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package model defines the messages exchanged over the bridge.
// The types are transport-agnostic: the NATS client and the stdout
// transport used by the exec command both produce Deliveries and carry
// Responses.
package model

import "encoding/json"

// Delivery is one inbound request as received from a transport.
type Delivery struct {
	// Tag identifies the delivery for acknowledgement.
	Tag string
	// CorrelationID links the request to its responses.
	CorrelationID string
	// ReplyTo is where responses are published; empty when the requester
	// gave no reply destination.
	ReplyTo string
	// Body is the raw request envelope.
	Body []byte
}

// Envelope is the decoded request body.
type Envelope struct {
	CorrelationID string          `json:"correlationId,omitempty"`
	ReplyTo       string          `json:"replyTo,omitempty"`
	Parameters    json.RawMessage `json:"parameters"`
}

// Status is a response status.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status ends a request.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Response is published to a request's reply destination.
type Response struct {
	Status Status `json:"status"`
	Data   string `json:"data,omitempty"`
}
