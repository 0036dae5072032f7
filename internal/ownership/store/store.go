// Package store persists the ownership subsystem's state: per-kind entity
// ownership columns, membership rosters, the append-only transfer ledger, and
// claim requests.
//
// Implementations return pkg/platform/sentinel errors for infrastructure
// facts; the service layer translates them into coded domain errors.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/ownership/models"
)

// Store is the persistence contract for the ownership service. Mutating
// methods participate in a transaction when the context carries one (see
// pkg/platform/tx); the service opens that transaction via Tx.RunInTx.
type Store interface {
	// FindEntity loads the ownership view of one entity.
	// Returns sentinel.ErrNotFound when no row exists for that kind and id.
	FindEntity(ctx context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error)

	// FindEntityForUpdate is FindEntity with the row locked for the duration
	// of the surrounding transaction. Every mutating service operation reads
	// through this so concurrent writers to the same entity serialize.
	FindEntityForUpdate(ctx context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error)

	// SetOwner writes the ownership columns of one entity in a single update:
	// owner reference, claim code, claimability, and claim timestamp.
	SetOwner(ctx context.Context, kind models.EntityKind, entityID int64, ownerID *int64, claimCode *string, claimable bool, claimedAt *time.Time) error

	// SetClaimCode replaces the claim code and marks the entity claimable
	// without touching current ownership.
	SetClaimCode(ctx context.Context, kind models.EntityKind, entityID int64, claimCode string) error

	// ActiveRosterRole returns the user's role from the kind's roster when an
	// active row exists. Returns sentinel.ErrNotFound when the user has no
	// active roster row, and sentinel.ErrInvalidState when the kind has no
	// roster at all.
	ActiveRosterRole(ctx context.Context, kind models.EntityKind, entityID, userID int64) (models.RosterRole, error)

	// UpsertRosterRole inserts or updates the (entity, user) roster row with
	// the given role and status.
	UpsertRosterRole(ctx context.Context, kind models.EntityKind, entityID, userID int64, role models.RosterRole, status models.RosterStatus) error

	// AppendTransfer appends one immutable ledger row.
	AppendTransfer(ctx context.Context, transfer *models.OwnershipTransfer) error

	// ListTransfers returns the entity's ledger rows, newest first.
	ListTransfers(ctx context.Context, kind models.EntityKind, entityID int64) ([]*models.OwnershipTransfer, error)

	// ListOwnedByKind returns every entity of the kind currently owned by the
	// user, ordered by id.
	ListOwnedByKind(ctx context.Context, kind models.EntityKind, userID int64) ([]*models.OwnedEntity, error)

	// ListUnclaimedByKind returns every ownerless, claimable entity of the
	// kind, claim codes included, ordered by id.
	ListUnclaimedByKind(ctx context.Context, kind models.EntityKind) ([]*models.OwnedEntity, error)

	// CreateClaim inserts a new claim request. Returns sentinel.ErrConflict
	// when the claimer already has a pending claim for the same entity.
	CreateClaim(ctx context.Context, claim *models.OwnershipClaim) error

	// FindClaimForUpdate loads a claim with the row locked for the duration
	// of the surrounding transaction.
	FindClaimForUpdate(ctx context.Context, claimID uuid.UUID) (*models.OwnershipClaim, error)

	// UpdateClaim persists review fields of an existing claim.
	UpdateClaim(ctx context.Context, claim *models.OwnershipClaim) error

	// HasPendingClaim reports whether the claimer has a pending claim for the
	// entity.
	HasPendingClaim(ctx context.Context, kind models.EntityKind, entityID, claimerID int64) (bool, error)

	// ListPendingClaims returns pending claims for the given kinds (all
	// configured kinds when empty), oldest first.
	ListPendingClaims(ctx context.Context, kinds []models.EntityKind) ([]*models.OwnershipClaim, error)
}

// Tx provides the transactional boundary for mutating operations.
// Implementations wrap a database transaction or, in-memory, a coarse lock.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
