package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// EventStore keeps events in memory and publishes them after each append.
// It backs local development and the dev-mode API when no DATABASE_URL is set.
type EventStore struct {
	mu        sync.RWMutex
	events    map[string][]Event // aggregateID -> events
	all       []Event
	snapshots map[string]*Snapshot
	publisher Publisher
	logger    *zap.Logger
}

func NewEventStore(publisher Publisher, logger *zap.Logger) *EventStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStore{
		logger:    logger,
		events:    make(map[string][]Event),
		snapshots: make(map[string]*Snapshot),
		publisher: publisher,
	}
}

// Append stores an event and then publishes it. Once stored, the event is
// returned even if publishing fails.
func (es *EventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	es.mu.Lock()
	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       len(es.events[aggregateID]) + 1,
	}
	es.events[aggregateID] = append(es.events[aggregateID], event)
	es.all = append(es.all, event)
	es.mu.Unlock()

	publishCommitted(ctx, es.publisher, es.logger, event)
	return &event, nil
}

// GetEvents returns all events for an aggregate
func (es *EventStore) GetEvents(_ context.Context, aggregateID string) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return append([]Event(nil), es.events[aggregateID]...), nil
}

// GetEventsFromVersion returns the events of an aggregate with a version above fromVersion
func (es *EventStore) GetEventsFromVersion(_ context.Context, aggregateID string, fromVersion int) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var out []Event
	for _, e := range es.events[aggregateID] {
		if e.Version > fromVersion {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAllEvents returns every event in append order
func (es *EventStore) GetAllEvents(_ context.Context) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return append([]Event(nil), es.all...), nil
}

func (es *EventStore) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.snapshots[snapshot.AggregateID] = snapshot
	return nil
}

func (es *EventStore) GetSnapshot(_ context.Context, aggregateID string) (*Snapshot, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.snapshots[aggregateID], nil
}
