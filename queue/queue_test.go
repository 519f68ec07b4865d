package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lifeline/cache"
	"go-lifeline/clients"
	"go-lifeline/metrics"
)

const partition = "test-queue-v1"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeBroadcaster struct {
	reach int
	sent  []clients.Message
}

func (f *fakeBroadcaster) Broadcast(msg clients.Message) int {
	f.sent = append(f.sent, msg)
	return f.reach
}

func newTestQueue(reach int) (*Queue, *fakeBroadcaster, clockwork.FakeClock) {
	b := &fakeBroadcaster{reach: reach}
	clock := clockwork.NewFakeClock()
	q := New(cache.NewMemoryStorage(), partition, b, clock, discard, metrics.NewForTesting())
	return q, b, clock
}

func TestEnqueueAssignsIDAndLists(t *testing.T) {
	q, _, clock := newTestQueue(1)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, Record{Kind: "incident", Payload: json.RawMessage(`{"type":"fire"}`)})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, clock.Now().UTC(), first.CreatedAt)

	clock.Advance(time.Second)
	_, err = q.Enqueue(ctx, Record{ID: "b", Kind: "incident", Payload: json.RawMessage(`{"type":"medical"}`)})
	require.NoError(t, err)

	list, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestEnqueueIsIdempotent(t *testing.T) {
	q, _, clock := newTestQueue(1)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, Record{ID: "a", Payload: json.RawMessage(`{"x":1,"y":2}`)})
	require.NoError(t, err)
	clock.Advance(time.Minute)

	again, err := q.Enqueue(ctx, Record{ID: "a", Payload: json.RawMessage(`{"y":2, "x":1}`)})
	require.NoError(t, err)
	assert.Equal(t, a.CreatedAt, again.CreatedAt)

	_, err = q.Enqueue(ctx, Record{ID: "a", Payload: json.RawMessage(`{"x":3}`)})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEnqueueRejectsBadPayload(t *testing.T) {
	q, _, _ := newTestQueue(1)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Record{ID: "a"})
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = q.Enqueue(ctx, Record{ID: "a", Payload: json.RawMessage(`{bad`)})
	assert.Error(t, err)
	_, err = q.Enqueue(ctx, Record{ID: "a/b", Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestReplayAllKeepsRecordsUntilAck(t *testing.T) {
	q, b, _ := newTestQueue(2)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Record{ID: "a", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Record{ID: "b", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	n, err := q.ReplayAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, b.sent, 1)
	assert.Equal(t, clients.TypeQueueReplay, b.sent[0].Type)
	assert.Len(t, b.sent[0].Data, 2)

	// Replay again: records are still there and attempts accumulate.
	_, err = q.ReplayAll(ctx)
	require.NoError(t, err)
	list, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Attempts)
	assert.NotNil(t, list[0].LastReplayAt)

	require.NoError(t, q.Ack(ctx, "a"))
	assert.ErrorIs(t, q.Ack(ctx, "a"), ErrNotFound)

	cleared, err := q.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	list, err = q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReplayAllWithoutClients(t *testing.T) {
	q, _, _ := newTestQueue(0)
	ctx := context.Background()

	n, err := q.ReplayAll(ctx)
	require.NoError(t, err, "empty queue needs no clients")
	assert.Zero(t, n)

	_, err = q.Enqueue(ctx, Record{ID: "a", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = q.ReplayAll(ctx)
	assert.ErrorIs(t, err, ErrNoClients)

	list, err := q.List(ctx)
	require.NoError(t, err)
	assert.Zero(t, list[0].Attempts)
}

func TestSyncManagerFire(t *testing.T) {
	ctx := context.Background()
	reachable := false
	probe := func(context.Context) error {
		if !reachable {
			return errors.New("offline")
		}
		return nil
	}
	s := NewSyncManager(probe, discard)

	runs := 0
	s.Handle("t", func(context.Context) error { runs++; return nil })
	assert.ErrorIs(t, s.RegisterReplay("missing"), ErrUnknownTag)
	require.NoError(t, s.RegisterReplay("t"))

	assert.Empty(t, s.Fire(ctx))
	assert.Equal(t, []string{"t"}, s.Pending())

	reachable = true
	assert.Equal(t, []string{"t"}, s.Fire(ctx))
	assert.Equal(t, 1, runs)
	assert.Empty(t, s.Pending())

	// Fired tags are one-shot.
	assert.Empty(t, s.Fire(ctx))
	assert.Equal(t, 1, runs)
}

func TestSyncManagerReregistersFailedReplay(t *testing.T) {
	ctx := context.Background()
	q, b, _ := newTestQueue(0)
	s := NewSyncManager(nil, discard)
	s.HandleReplay(q)

	_, err := q.Enqueue(ctx, Record{ID: "a", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, s.RegisterReplay(ReplayTag))

	assert.Empty(t, s.Fire(ctx))
	assert.Equal(t, []string{ReplayTag}, s.Pending())

	b.reach = 1
	assert.Equal(t, []string{ReplayTag}, s.Fire(ctx))
	assert.Empty(t, s.Pending())
}
