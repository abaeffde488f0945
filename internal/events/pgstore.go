package events

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists domain events in Postgres.
type PGStore struct {
	DB DBTX
}

const insertDomainEvent = `
INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, topic, aggregate_id, payload, occurred_at`

// InsertDomainEvent implements EventStore.
func (s PGStore) InsertDomainEvent(ctx context.Context, arg NewEvent) (Event, error) {
	var ev Event
	err := s.DB.QueryRow(ctx, insertDomainEvent, arg.Topic, arg.AggregateID, arg.Payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}

// WithTx returns a store bound to tx so events commit with the surrounding write.
func (s PGStore) WithTx(tx pgx.Tx) PGStore {
	return PGStore{DB: tx}
}
