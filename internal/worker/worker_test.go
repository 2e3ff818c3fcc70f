// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlworker/internal/bridge"
	"sqlworker/internal/bridge/model"
)

// queueBus hands out queued deliveries, then blocks until ctx is done or
// returns err once the queue is drained.
type queueBus struct {
	queue []model.Delivery
	err   error
}

func (q *queueBus) Next(ctx context.Context) (model.Delivery, error) {
	if len(q.queue) > 0 {
		d := q.queue[0]
		q.queue = q.queue[1:]
		return d, nil
	}
	if q.err != nil {
		return model.Delivery{}, q.err
	}
	<-ctx.Done()
	return model.Delivery{}, ctx.Err()
}

func (q *queueBus) Output(string) bridge.OutputSink { return nil }

// recordingHandler fails deliveries whose body is "fail" and cancels once it
// has seen stopAfter deliveries.
type recordingHandler struct {
	mu        sync.Mutex
	seen      []string
	active    int
	overlap   bool
	stopAfter int
	cancel    context.CancelFunc
}

func (h *recordingHandler) Handle(_ context.Context, d model.Delivery, _ bridge.OutputSink) model.Status {
	h.mu.Lock()
	h.active++
	if h.active > 1 {
		h.overlap = true
	}
	h.seen = append(h.seen, d.CorrelationID)
	done := len(h.seen) == h.stopAfter
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.active--
		h.mu.Unlock()
		if done && h.cancel != nil {
			h.cancel()
		}
	}()
	if string(d.Body) == "fail" {
		return model.StatusFailed
	}
	return model.StatusCompleted
}

func deliveries(ids ...string) []model.Delivery {
	out := make([]model.Delivery, len(ids))
	for i, id := range ids {
		body := "ok"
		if id == "bad" {
			body = "fail"
		}
		out[i] = model.Delivery{Tag: id, CorrelationID: id, Body: []byte(body)}
	}
	return out
}

func TestWorker_ProcessesInOrderUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := &queueBus{queue: deliveries("a", "bad", "c")}
	h := &recordingHandler{stopAfter: 3, cancel: cancel}
	w := New(bus, h, nil)

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, []string{"a", "bad", "c"}, h.seen)
	assert.False(t, h.overlap)
	assert.Equal(t, Stats{Completed: 2, Failed: 1}, w.Stats())
}

func TestWorker_HandlesDeliveryReceivedAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &recordingHandler{}
	w := New(&queueBus{queue: deliveries("late")}, h, nil)

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, []string{"late"}, h.seen)
	assert.Equal(t, Stats{Completed: 1}, w.Stats())
}

func TestWorker_SourceError(t *testing.T) {
	bus := &queueBus{queue: deliveries("a"), err: errors.New("connection closed")}
	w := New(bus, &recordingHandler{}, nil)

	err := w.Run(context.Background())
	assert.EqualError(t, err, "connection closed")
	assert.Equal(t, Stats{Completed: 1}, w.Stats())
}

type fakeHealth struct {
	mu       sync.Mutex
	statuses []bool
	stop     chan struct{}
	shutdown bool
}

func (f *fakeHealth) Serve() error {
	<-f.stop
	return nil
}

func (f *fakeHealth) SetServing(serving bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, serving)
}

func (f *fakeHealth) Shutdown(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
	close(f.stop)
}

func TestSupervise(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := &fakeHealth{stop: make(chan struct{})}
	w := New(&queueBus{queue: deliveries("a")}, &recordingHandler{stopAfter: 1, cancel: cancel}, nil)

	done := make(chan error, 1)
	go func() { done <- Supervise(ctx, w, h) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Supervise did not return")
	}
	assert.Equal(t, []bool{true, false}, h.statuses)
	assert.True(t, h.shutdown)
	assert.Equal(t, Stats{Completed: 1}, w.Stats())
}

func TestSupervise_LoopErrorStopsHealth(t *testing.T) {
	h := &fakeHealth{stop: make(chan struct{})}
	w := New(&queueBus{err: errors.New("stream deleted")}, &recordingHandler{}, nil)

	err := Supervise(context.Background(), w, h)
	assert.EqualError(t, err, "stream deleted")
	assert.True(t, h.shutdown)
}
