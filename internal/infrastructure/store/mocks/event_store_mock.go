package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
)

// MockEventStore is a mock implementation of EventStoreInterface for testing
type MockEventStore struct {
	mu        sync.RWMutex
	events    map[string][]store.Event
	all       []store.Event
	snapshots map[string]*store.Snapshot

	// For tracking calls in tests
	AppendCalls       []AppendCall
	SaveSnapshotCalls []*store.Snapshot
	AppendErr         error
	GetEventsErr      error
	AppendCallback    func(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*store.Event, error)
}

// AppendCall records parameters passed to Append
type AppendCall struct {
	AggregateID   string
	AggregateType string
	EventType     string
	Data          any
}

// NewMockEventStore creates a new MockEventStore
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{
		events:      make(map[string][]store.Event),
		snapshots:   make(map[string]*store.Snapshot),
		AppendCalls: make([]AppendCall, 0),
	}
}

// Append records the call and stores the event in memory
func (m *MockEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*store.Event, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          data,
	})
	callback, appendErr := m.AppendCallback, m.AppendErr
	m.mu.Unlock()

	if callback != nil {
		return callback(ctx, aggregateID, aggregateType, eventType, data)
	}
	if appendErr != nil {
		return nil, appendErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(aggregateID, aggregateType, eventType, data)
}

func (m *MockEventStore) addLocked(aggregateID, aggregateType, eventType string, data any) (*store.Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	event := store.Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       len(m.events[aggregateID]) + 1,
	}
	m.events[aggregateID] = append(m.events[aggregateID], event)
	m.all = append(m.all, event)
	return &event, nil
}

// GetEvents returns events for an aggregate
func (m *MockEventStore) GetEvents(_ context.Context, aggregateID string) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetEventsErr != nil {
		return nil, m.GetEventsErr
	}
	return append([]store.Event(nil), m.events[aggregateID]...), nil
}

// GetEventsFromVersion returns events after a version
func (m *MockEventStore) GetEventsFromVersion(_ context.Context, aggregateID string, fromVersion int) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetEventsErr != nil {
		return nil, m.GetEventsErr
	}
	var out []store.Event
	for _, e := range m.events[aggregateID] {
		if e.Version > fromVersion {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAllEvents returns all events
func (m *MockEventStore) GetAllEvents(_ context.Context) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetEventsErr != nil {
		return nil, m.GetEventsErr
	}
	return append([]store.Event(nil), m.all...), nil
}

// SaveSnapshot records the snapshot
func (m *MockEventStore) SaveSnapshot(_ context.Context, snapshot *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveSnapshotCalls = append(m.SaveSnapshotCalls, snapshot)
	m.snapshots[snapshot.AggregateID] = snapshot
	return nil
}

// GetSnapshot returns a previously saved snapshot or nil
func (m *MockEventStore) GetSnapshot(_ context.Context, aggregateID string) (*store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[aggregateID], nil
}

// Reset clears all events and recorded calls
func (m *MockEventStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]store.Event)
	m.all = nil
	m.snapshots = make(map[string]*store.Snapshot)
	m.AppendCalls = make([]AppendCall, 0)
	m.SaveSnapshotCalls = nil
	m.AppendErr = nil
	m.GetEventsErr = nil
	m.AppendCallback = nil
}

// AddEvent adds a single event for testing without recording an Append call
func (m *MockEventStore) AddEvent(aggregateID, aggregateType, eventType string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.addLocked(aggregateID, aggregateType, eventType, data)
	return err
}

// SetSnapshot seeds a snapshot without recording a SaveSnapshot call
func (m *MockEventStore) SetSnapshot(snapshot *store.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.AggregateID] = snapshot
}
