package audit

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "clubhub/pkg/platform/tx"
)

// PostgresStore appends audit events to the ownership_audit_events table.
// When the context carries a transaction it joins it, so events commit
// atomically with the mutation they describe.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO ownership_audit_events (id, action, entity_kind, entity_id, actor_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID, event.Action, event.EntityKind, event.EntityID, event.ActorID, event.Detail, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
