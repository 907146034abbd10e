package store

import (
	"context"

	"go.uber.org/zap"
)

// EventStoreInterface defines the interface for event stores
type EventStoreInterface interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error)
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
	GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error)
	GetAllEvents(ctx context.Context) ([]Event, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
}

// Publisher forwards stored events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// publishCommitted forwards an event that is already durable. A publish
// failure is logged, not returned: the event exists, so callers must see the
// append succeed. Replay and the bus consumers pick it up from the log.
func publishCommitted(ctx context.Context, publisher Publisher, logger *zap.Logger, event Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event.AggregateID, event); err != nil {
		logger.Error("failed to publish committed event",
			zap.String("event_id", event.ID),
			zap.String("aggregate_id", event.AggregateID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}
