package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/jennys-storefront/internal/infrastructure/store"
)

// Aggregate defines the interface for event-sourced aggregates
type Aggregate interface {
	GetID() string
	GetVersion() int
	SetVersion(int)
	ApplyEvent(store.Event) error
}

// LoadAggregate rebuilds an aggregate from its latest snapshot plus the events
// recorded after it. The boolean is false when neither exists.
func LoadAggregate[T Aggregate](
	ctx context.Context,
	eventStore store.EventStoreInterface,
	id string,
	newAggregate func() T,
) (T, bool, error) {
	var zero T
	agg := newAggregate()

	snapshot, err := eventStore.GetSnapshot(ctx, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var events []store.Event
	if snapshot != nil {
		if err := json.Unmarshal(snapshot.State, agg); err != nil {
			return zero, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		agg.SetVersion(snapshot.Version)
		events, err = eventStore.GetEventsFromVersion(ctx, id, snapshot.Version)
	} else {
		events, err = eventStore.GetEvents(ctx, id)
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to get events: %w", err)
	}

	if snapshot == nil && len(events) == 0 {
		return zero, false, nil
	}

	for _, event := range events {
		if err := agg.ApplyEvent(event); err != nil {
			return zero, false, fmt.Errorf("failed to apply event: %w", err)
		}
	}

	return agg, true, nil
}

// MaybeCreateSnapshot saves a snapshot when the aggregate version reaches the threshold
func MaybeCreateSnapshot(
	ctx context.Context,
	eventStore store.EventStoreInterface,
	agg Aggregate,
	aggregateType string,
) error {
	version := agg.GetVersion()
	if !store.Due(version) {
		return nil
	}

	state, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate state: %w", err)
	}

	snapshot := &store.Snapshot{
		AggregateID:   agg.GetID(),
		AggregateType: aggregateType,
		Version:       version,
		State:         state,
		CreatedAt:     time.Now(),
	}

	if err := eventStore.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
