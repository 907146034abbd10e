package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// HeaderEventType carries the event type so consumers can filter without
// decoding the payload.
const HeaderEventType = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes stored events keyed by aggregate id, which keeps every
// aggregate's events on one partition and therefore in order.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if e, ok := event.(store.Event); ok {
		msg.Headers = []kafka.Header{{Key: HeaderEventType, Value: []byte(e.EventType)}}
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

var _ store.Publisher = (*Producer)(nil)
