// Package transport carries push payloads into the process from a Kafka topic.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// PushMessage is one push delivery read from the topic.
type PushMessage struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
}

// Target returns the FCM fan-out target carried in the "target" header, if any.
func (m PushMessage) Target() string { return m.Headers["target"] }

// Handler processes one message. A returned error leaves the offset
// uncommitted so the message is redelivered.
type Handler func(ctx context.Context, msg PushMessage) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// PushConsumer reads push payloads from a Kafka topic in a consumer group.
type PushConsumer struct {
	reader messageReader
	logger *slog.Logger
}

func NewPushConsumer(brokers []string, topic, groupID string, logger *slog.Logger) *PushConsumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &PushConsumer{reader: r, logger: logger}
}

// Run consumes until ctx is cancelled. Handler failures are logged and the
// message is retried on the next fetch after a short pause.
func (c *PushConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch push message: %w", err)
		}

		pm := mapMessage(msg)
		if err := handle(ctx, pm); err != nil {
			c.logger.Warn("push message failed", "topic", pm.Topic, "partition", pm.Partition, "offset", pm.Offset, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit push message: %w", err)
		}
	}
}

func (c *PushConsumer) Close() error { return c.reader.Close() }

func mapMessage(msg kafkago.Message) PushMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return PushMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Headers:   headers,
	}
}
