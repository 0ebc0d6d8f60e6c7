package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/db"
)

// Store is the Postgres-backed EventStore.
type Store struct {
	DB db.DBTX
}

// NewStore constructs a Store over the given connection surface.
func NewStore(dbtx db.DBTX) Store {
	return Store{DB: dbtx}
}

// InsertDomainEvent appends one event row and returns it with the generated
// id and timestamp.
func (s Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	ev := Event{Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.DB.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, occurred_at`, topic, aggregateID, payload).Scan(&ev.ID, &ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("events: insert: %w", err)
	}
	return ev, nil
}
