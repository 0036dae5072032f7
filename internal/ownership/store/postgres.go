package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clubhub/internal/ownership/models"
	"clubhub/internal/ownership/registry"
	"clubhub/pkg/platform/sentinel"
	txcontext "clubhub/pkg/platform/tx"
)

// Postgres implements Store over the platform's relational schema.
//
// Table and column identifiers are interpolated into query text, but they
// come exclusively from the startup-validated registry binding; caller input
// only ever travels as query parameters.
type Postgres struct {
	db       *sql.DB
	registry *registry.Registry
}

// NewPostgres constructs the production store.
func NewPostgres(db *sql.DB, reg *registry.Registry) *Postgres {
	return &Postgres{db: db, registry: reg}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins the transaction in context when one is present, so every
// mutation inside Tx.RunInTx shares one transaction boundary.
func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Postgres) FindEntity(ctx context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error) {
	return s.findEntity(ctx, kind, entityID, false)
}

func (s *Postgres) FindEntityForUpdate(ctx context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error) {
	return s.findEntity(ctx, kind, entityID, true)
}

func (s *Postgres) findEntity(ctx context.Context, kind models.EntityKind, entityID int64, forUpdate bool) (*models.OwnedEntity, error) {
	b, err := s.registry.ForKind(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT id, %s, %s, is_claimable, claim_code, claimed_at FROM %s WHERE id = $1`,
		b.NameColumn, b.OwnerColumn, b.Table,
	)
	if forUpdate {
		query += " FOR UPDATE"
	}

	e := models.OwnedEntity{Kind: kind}
	var owner sql.NullInt64
	var code sql.NullString
	var claimedAt sql.NullTime
	err = s.execer(ctx).QueryRowContext(ctx, query, entityID).
		Scan(&e.ID, &e.Name, &owner, &e.IsClaimable, &code, &claimedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find %s %d: %w", kind, entityID, err)
	}
	if owner.Valid {
		e.OwnerID = &owner.Int64
	}
	if code.Valid {
		e.ClaimCode = &code.String
	}
	if claimedAt.Valid {
		e.ClaimedAt = &claimedAt.Time
	}
	return &e, nil
}

func (s *Postgres) SetOwner(ctx context.Context, kind models.EntityKind, entityID int64, ownerID *int64, claimCode *string, claimable bool, claimedAt *time.Time) error {
	b, err := s.registry.ForKind(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE %s SET %s = $1, claim_code = $2, is_claimable = $3, claimed_at = $4 WHERE id = $5`,
		b.Table, b.OwnerColumn,
	)
	res, err := s.execer(ctx).ExecContext(ctx, query,
		nullInt64(ownerID), nullString(claimCode), claimable, nullTime(claimedAt), entityID)
	if err != nil {
		return fmt.Errorf("set owner of %s %d: %w", kind, entityID, err)
	}
	return requireRow(res)
}

func (s *Postgres) SetClaimCode(ctx context.Context, kind models.EntityKind, entityID int64, claimCode string) error {
	b, err := s.registry.ForKind(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET claim_code = $1, is_claimable = TRUE WHERE id = $2`, b.Table)
	res, err := s.execer(ctx).ExecContext(ctx, query, claimCode, entityID)
	if err != nil {
		return fmt.Errorf("set claim code of %s %d: %w", kind, entityID, err)
	}
	return requireRow(res)
}

func (s *Postgres) ActiveRosterRole(ctx context.Context, kind models.EntityKind, entityID, userID int64) (models.RosterRole, error) {
	b, err := s.registry.ForKind(kind)
	if err != nil {
		return "", err
	}
	if !b.HasRoster() {
		return "", sentinel.ErrInvalidState
	}
	ro := b.Roster
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3`,
		ro.RoleColumn, ro.Table, ro.EntityColumn, ro.UserColumn, ro.StatusColumn,
	)
	var role models.RosterRole
	err = s.execer(ctx).QueryRowContext(ctx, query, entityID, userID, models.RosterStatusActive).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("roster role of user %d in %s %d: %w", userID, kind, entityID, err)
	}
	return role, nil
}

func (s *Postgres) UpsertRosterRole(ctx context.Context, kind models.EntityKind, entityID, userID int64, role models.RosterRole, status models.RosterStatus) error {
	b, err := s.registry.ForKind(kind)
	if err != nil {
		return err
	}
	if !b.HasRoster() {
		return sentinel.ErrInvalidState
	}
	ro := b.Roster
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (%s, %s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s`,
		ro.Table, ro.EntityColumn, ro.UserColumn, ro.RoleColumn, ro.StatusColumn,
		ro.EntityColumn, ro.UserColumn, ro.RoleColumn, ro.RoleColumn, ro.StatusColumn, ro.StatusColumn,
	)
	if _, err := s.execer(ctx).ExecContext(ctx, query, entityID, userID, role, status); err != nil {
		return fmt.Errorf("upsert roster row for user %d in %s %d: %w", userID, kind, entityID, err)
	}
	return nil
}

func (s *Postgres) AppendTransfer(ctx context.Context, t *models.OwnershipTransfer) error {
	const query = `
		INSERT INTO ownership_transfers
			(id, entity_kind, entity_id, from_user_id, to_user_id, transfer_type, reason, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		t.ID, t.EntityKind, t.EntityID, nullInt64(t.FromUserID), t.ToUserID,
		t.TransferType, nullString(t.Reason), nullInt64(t.PerformedBy), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transfer for %s %d: %w", t.EntityKind, t.EntityID, err)
	}
	return nil
}

func (s *Postgres) ListTransfers(ctx context.Context, kind models.EntityKind, entityID int64) ([]*models.OwnershipTransfer, error) {
	const query = `
		SELECT id, entity_kind, entity_id, from_user_id, to_user_id, transfer_type, reason, performed_by, created_at
		FROM ownership_transfers
		WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, kind, entityID)
	if err != nil {
		return nil, fmt.Errorf("list transfers for %s %d: %w", kind, entityID, err)
	}
	defer rows.Close()

	var out []*models.OwnershipTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransfer(rows *sql.Rows) (*models.OwnershipTransfer, error) {
	var t models.OwnershipTransfer
	var from, performedBy sql.NullInt64
	var reason sql.NullString
	err := rows.Scan(&t.ID, &t.EntityKind, &t.EntityID, &from, &t.ToUserID,
		&t.TransferType, &reason, &performedBy, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	if from.Valid {
		t.FromUserID = &from.Int64
	}
	if reason.Valid {
		t.Reason = &reason.String
	}
	if performedBy.Valid {
		t.PerformedBy = &performedBy.Int64
	}
	return &t, nil
}

func (s *Postgres) ListOwnedByKind(ctx context.Context, kind models.EntityKind, userID int64) ([]*models.OwnedEntity, error) {
	b, err := s.registry.ForKind(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT id, %s, %s, is_claimable, claim_code, claimed_at FROM %s WHERE %s = $1 ORDER BY id`,
		b.NameColumn, b.OwnerColumn, b.Table, b.OwnerColumn,
	)
	return s.listEntities(ctx, kind, query, userID)
}

func (s *Postgres) ListUnclaimedByKind(ctx context.Context, kind models.EntityKind) ([]*models.OwnedEntity, error) {
	b, err := s.registry.ForKind(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT id, %s, %s, is_claimable, claim_code, claimed_at FROM %s
		 WHERE %s IS NULL AND is_claimable ORDER BY id`,
		b.NameColumn, b.OwnerColumn, b.Table, b.OwnerColumn,
	)
	return s.listEntities(ctx, kind, query)
}

func (s *Postgres) listEntities(ctx context.Context, kind models.EntityKind, query string, args ...any) ([]*models.OwnedEntity, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s entities: %w", kind, err)
	}
	defer rows.Close()

	var out []*models.OwnedEntity
	for rows.Next() {
		e := models.OwnedEntity{Kind: kind}
		var owner sql.NullInt64
		var code sql.NullString
		var claimedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.Name, &owner, &e.IsClaimable, &code, &claimedAt); err != nil {
			return nil, fmt.Errorf("scan %s entity: %w", kind, err)
		}
		if owner.Valid {
			e.OwnerID = &owner.Int64
		}
		if code.Valid {
			e.ClaimCode = &code.String
		}
		if claimedAt.Valid {
			e.ClaimedAt = &claimedAt.Time
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateClaim(ctx context.Context, c *models.OwnershipClaim) error {
	const query = `
		INSERT INTO ownership_claims
			(id, entity_kind, entity_id, claimer_id, status, claim_reason, verification_info,
			 reviewed_by, reviewed_at, review_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		c.ID, c.EntityKind, c.EntityID, c.ClaimerID, c.Status, c.ClaimReason,
		nullBytes(c.VerificationInfo), nullInt64(c.ReviewedBy), nullTime(c.ReviewedAt),
		nullString(c.ReviewNotes), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		// The partial unique index on pending claims enforces the
		// one-pending-claim-per-claimer invariant under concurrency.
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create claim for %s %d: %w", c.EntityKind, c.EntityID, err)
	}
	return nil
}

func (s *Postgres) FindClaimForUpdate(ctx context.Context, claimID uuid.UUID) (*models.OwnershipClaim, error) {
	const query = `
		SELECT id, entity_kind, entity_id, claimer_id, status, claim_reason, verification_info,
		       reviewed_by, reviewed_at, review_notes, created_at, updated_at
		FROM ownership_claims WHERE id = $1 FOR UPDATE`
	return s.scanClaimRow(s.execer(ctx).QueryRowContext(ctx, query, claimID))
}

func (s *Postgres) scanClaimRow(row *sql.Row) (*models.OwnershipClaim, error) {
	var c models.OwnershipClaim
	var verification []byte
	var reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime
	var notes sql.NullString
	err := row.Scan(&c.ID, &c.EntityKind, &c.EntityID, &c.ClaimerID, &c.Status, &c.ClaimReason,
		&verification, &reviewedBy, &reviewedAt, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	c.VerificationInfo = verification
	if reviewedBy.Valid {
		c.ReviewedBy = &reviewedBy.Int64
	}
	if reviewedAt.Valid {
		c.ReviewedAt = &reviewedAt.Time
	}
	if notes.Valid {
		c.ReviewNotes = &notes.String
	}
	return &c, nil
}

func (s *Postgres) UpdateClaim(ctx context.Context, c *models.OwnershipClaim) error {
	const query = `
		UPDATE ownership_claims
		SET status = $1, reviewed_by = $2, reviewed_at = $3, review_notes = $4, updated_at = $5
		WHERE id = $6`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		c.Status, nullInt64(c.ReviewedBy), nullTime(c.ReviewedAt),
		nullString(c.ReviewNotes), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update claim %s: %w", c.ID, err)
	}
	return requireRow(res)
}

func (s *Postgres) HasPendingClaim(ctx context.Context, kind models.EntityKind, entityID, claimerID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM ownership_claims
			WHERE entity_kind = $1 AND entity_id = $2 AND claimer_id = $3 AND status = $4
		)`
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, query, kind, entityID, claimerID, models.ClaimStatusPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending claim for %s %d: %w", kind, entityID, err)
	}
	return exists, nil
}

func (s *Postgres) ListPendingClaims(ctx context.Context, kinds []models.EntityKind) ([]*models.OwnershipClaim, error) {
	query := `
		SELECT id, entity_kind, entity_id, claimer_id, status, claim_reason, verification_info,
		       reviewed_by, reviewed_at, review_notes, created_at, updated_at
		FROM ownership_claims WHERE status = $1`
	args := []any{models.ClaimStatusPending}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		query += ` AND entity_kind = ANY($2)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending claims: %w", err)
	}
	defer rows.Close()

	var out []*models.OwnershipClaim
	for rows.Next() {
		var c models.OwnershipClaim
		var verification []byte
		var reviewedBy sql.NullInt64
		var reviewedAt sql.NullTime
		var notes sql.NullString
		err := rows.Scan(&c.ID, &c.EntityKind, &c.EntityID, &c.ClaimerID, &c.Status, &c.ClaimReason,
			&verification, &reviewedBy, &reviewedAt, &notes, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		c.VerificationInfo = verification
		if reviewedBy.Valid {
			c.ReviewedBy = &reviewedBy.Int64
		}
		if reviewedAt.Valid {
			c.ReviewedAt = &reviewedAt.Time
		}
		if notes.Valid {
			c.ReviewNotes = &notes.String
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SQLTx runs a function inside one database transaction. Store methods called
// with the returned context join that transaction via pkg/platform/tx.
type SQLTx struct {
	db *sql.DB
}

// NewSQLTx constructs the production transaction boundary.
func NewSQLTx(db *sql.DB) *SQLTx {
	return &SQLTx{db: db}
}

func (t *SQLTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	dbTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", sentinel.ErrUnavailable, err)
	}
	if err := fn(txcontext.WithTx(ctx, dbTx)); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullBytes(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return v
}
