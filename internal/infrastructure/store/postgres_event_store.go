package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresEventStore stores events in PostgreSQL
type PostgresEventStore struct {
	db        *sql.DB
	publisher Publisher
	logger    *zap.Logger
}

func NewPostgresEventStore(db *sql.DB, publisher Publisher, logger *zap.Logger) *PostgresEventStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresEventStore{
		logger:    logger,
		db:        db,
		publisher: publisher,
	}
}

const eventColumns = `id, aggregate_id, aggregate_type, event_type, data, version, created_at`

// Append stores an event in PostgreSQL and then publishes it. A committed
// event is returned even if publishing fails.
// The (aggregate_id, version) unique index rejects concurrent writers that
// computed the same next version.
func (es *PostgresEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var currentVersion int
	err = es.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1",
		aggregateID,
	).Scan(&currentVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregate version: %w", err)
	}

	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now().UTC(),
		Version:       currentVersion + 1,
	}

	_, err = es.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		string(event.Data),
		event.Version,
		event.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	publishCommitted(ctx, es.publisher, es.logger, event)
	return &event, nil
}

// GetEvents returns all events for an aggregate ordered by version
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	return es.query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE aggregate_id = $1 ORDER BY version ASC`,
		aggregateID,
	)
}

// GetEventsFromVersion returns events recorded after a snapshot version
func (es *PostgresEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error) {
	return es.query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE aggregate_id = $1 AND version > $2 ORDER BY version ASC`,
		aggregateID, fromVersion,
	)
}

// GetAllEvents returns all events in creation order (used for read model replay)
func (es *PostgresEventStore) GetAllEvents(ctx context.Context) ([]Event, error) {
	return es.query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at ASC, version ASC`,
	)
}

func (es *PostgresEventStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := es.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var data []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &e.Version, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveSnapshot upserts the latest snapshot of an aggregate
func (es *PostgresEventStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	_, err := es.db.ExecContext(ctx, `
		INSERT INTO snapshots (aggregate_id, aggregate_type, version, state, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (aggregate_id) DO UPDATE SET
			aggregate_type = EXCLUDED.aggregate_type,
			version = EXCLUDED.version,
			state = EXCLUDED.state,
			created_at = EXCLUDED.created_at
	`, snapshot.AggregateID, snapshot.AggregateType, snapshot.Version, string(snapshot.State), snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns nil without error when no snapshot exists
func (es *PostgresEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	var s Snapshot
	var state []byte
	err := es.db.QueryRowContext(ctx,
		`SELECT aggregate_id, aggregate_type, version, state, created_at FROM snapshots WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&s.AggregateID, &s.AggregateType, &s.Version, &state, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	s.State = json.RawMessage(state)
	return &s, nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
