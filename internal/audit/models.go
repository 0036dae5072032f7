// Package audit captures structured audit events for administrative review.
// Events complement the transfer ledger: the ledger is the source of truth
// for ownership history, audit events record who did what through which
// operation, including actions that leave no ledger row (code regeneration,
// claim rejection).
package audit

import (
	"time"

	"github.com/google/uuid"

	"clubhub/internal/ownership/models"
)

// Action identifies the operation that produced an event.
type Action string

const (
	ActionOwnershipTransferred Action = "ownership.transferred"
	ActionUnclaimedMinted      Action = "ownership.unclaimed_minted"
	ActionEntityClaimed        Action = "ownership.entity_claimed"
	ActionClaimCodeRegenerated Action = "ownership.claim_code_regenerated"
	ActionClaimSubmitted       Action = "ownership.claim_submitted"
	ActionClaimReviewed        Action = "ownership.claim_reviewed"
)

// Event is one append-only audit record.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Action     Action            `json:"action"`
	EntityKind models.EntityKind `json:"entity_kind"`
	EntityID   int64             `json:"entity_id"`
	ActorID    int64             `json:"actor_id"`
	Detail     string            `json:"detail,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
