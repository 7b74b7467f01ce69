package producer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

const (
	// batchTimeout keeps latency low; lifecycle events are rare enough that
	// batching buys nothing.
	batchTimeout = 50 * time.Millisecond
	emitTimeout  = 5 * time.Second
)

// KafkaProducer implements Producer over segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewKafkaProducer creates a producer that writes events to the given topic.
// Returns (nil, nil) when brokers or topic are unset so call sites can fall
// back to another notifier without a config error.
func NewKafkaProducer(brokers []string, topic string, logger *slog.Logger) (*KafkaProducer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{
		writer: writer,
		topic:  topic,
		logger: logger.With("component", "notify"),
	}, nil
}

// Emit serializes the event as JSON and writes it to the topic. The message
// key is the user id so one user's events stay ordered within a partition,
// and the message time is the event time. A short timeout keeps a slow
// broker from hanging callers.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Time:  event.CreatedAt,
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Warn("kafka emit failed", "topic", p.topic, "event_id", event.ID, "error", err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
