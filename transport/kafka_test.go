package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessage(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("E1"),
		Value:     []byte(`{"type":"emergency_assigned","emergencyId":"E1"}`),
		Topic:     "lifeline-push",
		Partition: 1,
		Offset:    7,
		Time:      now,
		Headers:   []kafkago.Header{{Key: "target", Value: []byte("topic:responders")}},
	}

	pm := mapMessage(msg)
	assert.Equal(t, []byte("E1"), pm.Key)
	assert.JSONEq(t, `{"type":"emergency_assigned","emergencyId":"E1"}`, string(pm.Value))
	assert.Equal(t, "lifeline-push", pm.Topic)
	assert.Equal(t, 1, pm.Partition)
	assert.Equal(t, int64(7), pm.Offset)
	assert.Equal(t, now, pm.Timestamp)
	assert.Equal(t, "topic:responders", pm.Target())
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestRunCommitsHandledMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafkago.Message{{Offset: 1, Value: []byte(`{}`)}, {Offset: 2, Value: []byte(`{}`)}}}
	c := &PushConsumer{reader: r, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	ctx, cancel := context.WithCancel(context.Background())
	var seen []int64
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, m PushMessage) error {
			seen = append(seen, m.Offset)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int64{1, 2}, seen)
}

func TestRunDoesNotCommitFailures(t *testing.T) {
	r := &fakeReader{msgs: []kafkago.Message{{Offset: 1}}}
	c := &PushConsumer{reader: r, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	handled := make(chan struct{}, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, PushMessage) error {
			handled <- struct{}{}
			return errors.New("bad payload")
		})
	}()

	<-handled
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.commits())
}
