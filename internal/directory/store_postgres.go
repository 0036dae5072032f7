package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clubhub/pkg/platform/sentinel"
	txcontext "clubhub/pkg/platform/tx"
)

// Postgres reads the platform's users table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) rowQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) FindByID(ctx context.Context, userID int64) (*User, error) {
	const query = `SELECT id, display_name, is_system_admin FROM users WHERE id = $1`
	var u User
	err := s.querier(ctx).QueryRowContext(ctx, query, userID).
		Scan(&u.ID, &u.DisplayName, &u.IsSystemAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}
	return &u, nil
}
