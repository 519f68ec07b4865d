// Package queue holds mutations created while offline and hands them back to
// connected clients for re-submission once connectivity returns.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"go-lifeline/cache"
	"go-lifeline/clients"
	"go-lifeline/metrics"
)

var (
	ErrNotFound  = errors.New("queue: record not found")
	ErrConflict  = errors.New("queue: id already queued with a different payload")
	ErrNoClients = errors.New("queue: no connected clients")
	ErrEmpty     = errors.New("queue: empty payload")
)

const keyPrefix = "/queue/"

// Record is one queued mutation.
type Record struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"createdAt"`
	Attempts     int             `json:"attempts"`
	LastReplayAt *time.Time      `json:"lastReplayAt,omitempty"`
}

// Broadcaster delivers a message to every connected client and reports how
// many received it.
type Broadcaster interface {
	Broadcast(msg clients.Message) int
}

// Queue stores records in a dedicated cache partition. Records are never
// evicted by replay; they stay until acknowledged or cleared.
type Queue struct {
	storage   cache.Storage
	partition string
	clients   Broadcaster
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(storage cache.Storage, partition string, c Broadcaster, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Queue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Queue{storage: storage, partition: partition, clients: c, clock: clock, logger: logger, metrics: m}
}

func key(id string) string { return keyPrefix + id }

// Enqueue stores rec under its id, assigning one if empty. Re-enqueuing the
// same id with the same payload returns the stored record unchanged.
func (q *Queue) Enqueue(ctx context.Context, rec Record) (Record, error) {
	if len(bytes.TrimSpace(rec.Payload)) == 0 {
		return Record{}, ErrEmpty
	}
	if !json.Valid(rec.Payload) {
		return Record{}, fmt.Errorf("queue: payload is not valid JSON")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if strings.Contains(rec.ID, "/") {
		return Record{}, fmt.Errorf("queue: invalid id %q", rec.ID)
	}

	p, err := q.storage.Open(ctx, q.partition)
	if err != nil {
		return Record{}, fmt.Errorf("open %s: %w", q.partition, err)
	}
	existing, err := q.get(ctx, p, rec.ID)
	switch {
	case err == nil:
		if !jsonEqual(existing.Payload, rec.Payload) {
			return Record{}, ErrConflict
		}
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return Record{}, err
	}

	rec.CreatedAt = q.clock.Now().UTC()
	rec.Attempts = 0
	rec.LastReplayAt = nil
	if err := q.put(ctx, p, rec); err != nil {
		return Record{}, err
	}
	q.logger.Info("mutation queued", "id", rec.ID, "kind", rec.Kind)
	q.refreshGauge(ctx, p)
	return rec, nil
}

// List returns every queued record, oldest first.
func (q *Queue) List(ctx context.Context) ([]Record, error) {
	p, err := q.storage.Open(ctx, q.partition)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", q.partition, err)
	}
	return q.list(ctx, p)
}

func (q *Queue) list(ctx context.Context, p cache.Partition) ([]Record, error) {
	keys, err := p.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.partition, err)
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		id, ok := strings.CutPrefix(k, keyPrefix)
		if !ok {
			continue
		}
		rec, err := q.get(ctx, p, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Ack removes a record once the caller has re-submitted it.
func (q *Queue) Ack(ctx context.Context, id string) error {
	p, err := q.storage.Open(ctx, q.partition)
	if err != nil {
		return fmt.Errorf("open %s: %w", q.partition, err)
	}
	ok, err := p.Delete(ctx, key(id))
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	q.refreshGauge(ctx, p)
	return nil
}

// Clear drops every record and returns how many were removed.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	p, err := q.storage.Open(ctx, q.partition)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", q.partition, err)
	}
	keys, err := p.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", q.partition, err)
	}
	n := 0
	for _, k := range keys {
		ok, err := p.Delete(ctx, k)
		if err != nil {
			return n, fmt.Errorf("delete %s: %w", k, err)
		}
		if ok {
			n++
		}
	}
	q.refreshGauge(ctx, p)
	return n, nil
}

// ReplayAll posts every queued record to all connected clients in a single
// queue-replay message and records the attempt. It returns ErrNoClients when
// nobody received the hand-off, in which case no attempt is recorded.
func (q *Queue) ReplayAll(ctx context.Context) (int, error) {
	p, err := q.storage.Open(ctx, q.partition)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", q.partition, err)
	}
	records, err := q.list(ctx, p)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	reached := q.clients.Broadcast(clients.Message{Type: clients.TypeQueueReplay, Data: records})
	if reached == 0 {
		return 0, ErrNoClients
	}

	now := q.clock.Now().UTC()
	for _, rec := range records {
		rec.Attempts++
		rec.LastReplayAt = &now
		if err := q.put(ctx, p, rec); err != nil {
			q.logger.Warn("record replay attempt failed", "id", rec.ID, "error", err)
		}
	}
	q.metrics.QueueReplays.Inc()
	q.logger.Info("queue replayed", "records", len(records), "clients", reached)
	return len(records), nil
}

func (q *Queue) get(ctx context.Context, p cache.Partition, id string) (Record, error) {
	e, err := p.Match(ctx, key(id))
	if errors.Is(err, cache.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("match %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(e.Body, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return rec, nil
}

func (q *Queue) put(ctx context.Context, p cache.Partition, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.ID, err)
	}
	e := &cache.Entry{
		Key:      key(rec.ID),
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"application/json"}},
		Body:     body,
		StoredAt: q.clock.Now(),
	}
	if err := p.Put(ctx, e); err != nil {
		return fmt.Errorf("store %s: %w", rec.ID, err)
	}
	return nil
}

func (q *Queue) refreshGauge(ctx context.Context, p cache.Partition) {
	keys, err := p.Keys(ctx)
	if err != nil {
		return
	}
	q.metrics.QueueItems.Set(float64(len(keys)))
}

func jsonEqual(a, b json.RawMessage) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return bytes.Equal(a, b)
	}
	xb, _ := json.Marshal(x)
	yb, _ := json.Marshal(y)
	return bytes.Equal(xb, yb)
}
