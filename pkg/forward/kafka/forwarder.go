// Package kafka republishes recorded commands to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/modoterra/cmdhub/pkg/core"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON value of each published message. The key is the
// instance id, so one instance's commands stay in one partition.
type Event struct {
	core.Record
	ObservedAt time.Time `json:"observed_at"`
}

// Forwarder publishes records asynchronously. Forward never blocks the
// caller on the network.
type Forwarder struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// New creates a forwarder writing to topic on brokers.
func New(brokers []string, topic string, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forwarder{logger: logger, now: time.Now}
	f.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		Completion:   f.completed,
	}
	logger.Info("forwarding to kafka", "brokers", brokers, "topic", topic)
	return f
}

// Forward queues rec for publishing.
func (f *Forwarder) Forward(rec core.Record) {
	value, err := json.Marshal(Event{Record: rec, ObservedAt: f.now().UTC()})
	if err != nil {
		f.logger.Error("encode kafka event", "err", err)
		return
	}
	msg := kafka.Message{Key: []byte(rec.Instance), Value: value}
	if err := f.writer.WriteMessages(context.Background(), msg); err != nil {
		f.logger.Warn("kafka write", "instance", rec.Instance, "err", err)
	}
}

func (f *Forwarder) completed(msgs []kafka.Message, err error) {
	if err != nil {
		f.logger.Warn("kafka delivery failed", "messages", len(msgs), "err", err)
	}
}

// Close flushes pending messages.
func (f *Forwarder) Close() error {
	return f.writer.Close()
}
