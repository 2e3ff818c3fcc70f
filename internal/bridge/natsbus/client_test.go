// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package natsbus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlworker/internal/bridge/model"
	"sqlworker/internal/config"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

func testConfig(url string) config.Bus {
	return config.Bus{
		Driver:        "nats",
		URL:           url,
		Stream:        "SQLWORKER",
		Subject:       "sqlworker.requests",
		Durable:       "sqlworker",
		CreateStream:  true,
		FetchWait:     200 * time.Millisecond,
		OutputSubject: "sqlworker.output",
	}
}

func connect(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Connect(context.Background(), testConfig(url), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func requester(t *testing.T, url string) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func next(t *testing.T, c *Client) model.Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := c.Next(ctx)
	require.NoError(t, err)
	return d
}

func TestClient_HeadersAndReply(t *testing.T) {
	s := runServer(t)
	c := connect(t, s.ClientURL())
	nc := requester(t, s.ClientURL())

	replies, err := nc.SubscribeSync("replies.1")
	require.NoError(t, err)

	req := nats.NewMsg("sqlworker.requests")
	req.Header.Set(HeaderCorrelationID, "corr-1")
	req.Header.Set(HeaderReplyTo, "replies.1")
	req.Data = []byte(`{"parameters": {"subcommand": "DropTable"}}`)
	require.NoError(t, nc.PublishMsg(req))

	d := next(t, c)
	assert.Equal(t, "corr-1", d.CorrelationID)
	assert.Equal(t, "replies.1", d.ReplyTo)
	assert.JSONEq(t, `{"parameters": {"subcommand": "DropTable"}}`, string(d.Body))
	assert.NotEmpty(t, d.Tag)

	require.NoError(t, c.Ack(context.Background(), d.Tag))
	assert.Error(t, c.Ack(context.Background(), d.Tag))

	require.NoError(t, c.Publish(context.Background(), d.ReplyTo, d.CorrelationID, []byte(`{"status":"started"}`)))
	msg, err := replies.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "corr-1", msg.Header.Get(HeaderCorrelationID))
	assert.JSONEq(t, `{"status":"started"}`, string(msg.Data))
}

func TestClient_EnvelopeFallback(t *testing.T) {
	s := runServer(t)
	c := connect(t, s.ClientURL())
	nc := requester(t, s.ClientURL())

	require.NoError(t, nc.Publish("sqlworker.requests",
		[]byte(`{"correlationId": "corr-2", "replyTo": "replies.2", "parameters": {}}`)))
	d := next(t, c)
	assert.Equal(t, "corr-2", d.CorrelationID)
	assert.Equal(t, "replies.2", d.ReplyTo)

	require.NoError(t, nc.Publish("sqlworker.requests", []byte(`not json`)))
	d = next(t, c)
	assert.NotEmpty(t, d.CorrelationID)
	assert.Empty(t, d.ReplyTo)
	assert.ErrorContains(t, c.Publish(context.Background(), d.ReplyTo, d.CorrelationID, nil), "no reply destination")
}

func TestClient_Output(t *testing.T) {
	s := runServer(t)
	c := connect(t, s.ClientURL())
	nc := requester(t, s.ClientURL())

	out, err := nc.SubscribeSync("sqlworker.output.corr-3")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	c.Output("corr-3").Error("Unable to drop table t because of missing input database")
	msg, err := out.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Unable to drop table t because of missing input database", string(msg.Data))
}

func TestClient_NextHonorsContext(t *testing.T) {
	s := runServer(t)
	c := connect(t, s.ClientURL())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := c.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_RedeliveryAfterRestart(t *testing.T) {
	s := runServer(t)
	nc := requester(t, s.ClientURL())

	first := connect(t, s.ClientURL())
	require.NoError(t, nc.Publish("sqlworker.requests", []byte(`{"correlationId": "a"}`)))
	require.NoError(t, nc.Publish("sqlworker.requests", []byte(`{"correlationId": "b"}`)))

	d := next(t, first)
	assert.Equal(t, "a", d.CorrelationID)
	require.NoError(t, first.Ack(context.Background(), d.Tag))
	require.NoError(t, first.Close())

	// The durable consumer keeps its position across workers.
	second := connect(t, s.ClientURL())
	d = next(t, second)
	assert.Equal(t, "b", d.CorrelationID)
}
