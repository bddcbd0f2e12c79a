package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists audit events.
type Store interface {
	Insert(ctx context.Context, event Event) error
}

// PGStore writes events into the audit_events table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert appends the event.
func (s *PGStore) Insert(ctx context.Context, event Event) error {
	if s == nil || s.pool == nil {
		return errors.New("audit store not initialised")
	}
	meta, err := json.Marshal(event.Context)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, actor_id, resource, resource_id, action, outcome, context, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.ActorID, event.Resource, event.ResourceID, event.Action, event.Outcome, meta, event.At)
	return err
}
