package store

import (
	"encoding/json"
	"time"
)

// SnapshotThreshold is how many events an aggregate accumulates between
// snapshots.
const SnapshotThreshold = 10

// Snapshot is an aggregate's serialized state as of Version.
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Due reports whether an aggregate at version should be snapshotted.
func Due(version int) bool {
	return version > 0 && version%SnapshotThreshold == 0
}
