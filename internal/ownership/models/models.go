package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	dErrors "clubhub/pkg/domain-errors"
)

// EntityKind is the closed set of record types that can be owned.
type EntityKind string

const (
	KindVenue      EntityKind = "venue"
	KindClub       EntityKind = "club"
	KindTournament EntityKind = "tournament"
	KindCommunity  EntityKind = "community"
)

// Kinds lists every entity kind, in the order aggregate views report them.
func Kinds() []EntityKind {
	return []EntityKind{KindVenue, KindClub, KindTournament, KindCommunity}
}

// ParseKind validates caller-supplied kind strings at the trust boundary.
func ParseKind(s string) (EntityKind, error) {
	switch k := EntityKind(s); k {
	case KindVenue, KindClub, KindTournament, KindCommunity:
		return k, nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown entity kind %q", s)
}

// OwnedEntity is the ownership view over a platform record.
//
// Invariants:
//   - ClaimCode is non-nil only while OwnerID is nil and IsClaimable is true
//   - a non-nil OwnerID and IsClaimable=true coexist only mid-transition,
//     inside the transaction that is moving the owner out
type OwnedEntity struct {
	Kind        EntityKind `json:"kind"`
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	OwnerID     *int64     `json:"owner_id"`
	OwnerName   string     `json:"owner_name,omitempty"`
	IsClaimable bool       `json:"is_claimable"`
	ClaimCode   *string    `json:"claim_code,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
}

// TransferType records which path produced a ledger row.
type TransferType string

const (
	TransferTypeTransfer    TransferType = "transfer"
	TransferTypeClaim       TransferType = "claim"
	TransferTypeAdminAssign TransferType = "admin_assign"
)

// OwnershipTransfer is one immutable row of the transfer ledger. Rows are
// appended in the same transaction as the ownership mutation they describe
// and are never updated or deleted.
//
// FromUserID is nil for admin-assign and for claims of previously ownerless
// entities.
type OwnershipTransfer struct {
	ID              uuid.UUID    `json:"id"`
	EntityKind      EntityKind   `json:"entity_kind"`
	EntityID        int64        `json:"entity_id"`
	FromUserID      *int64       `json:"from_user_id"`
	FromUserName    string       `json:"from_user_name,omitempty"`
	ToUserID        int64        `json:"to_user_id"`
	ToUserName      string       `json:"to_user_name,omitempty"`
	TransferType    TransferType `json:"transfer_type"`
	Reason          *string      `json:"reason,omitempty"`
	PerformedBy     *int64       `json:"performed_by"`
	PerformedByName string       `json:"performed_by_name,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// ClaimStatus is the review state of an ownership claim request.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

// OwnershipClaim is a request-for-ownership record.
//
// Invariants:
//   - at most one pending claim per (EntityKind, EntityID, ClaimerID)
//   - Status transitions pending→approved or pending→rejected exactly once,
//     never reversed, and only by a system administrator
type OwnershipClaim struct {
	ID               uuid.UUID       `json:"id"`
	EntityKind       EntityKind      `json:"entity_kind"`
	EntityID         int64           `json:"entity_id"`
	EntityName       string          `json:"entity_name,omitempty"`
	ClaimerID        int64           `json:"claimer_id"`
	ClaimerName      string          `json:"claimer_name,omitempty"`
	Status           ClaimStatus     `json:"status"`
	ClaimReason      string          `json:"claim_reason"`
	VerificationInfo json.RawMessage `json:"verification_info,omitempty"`
	ReviewedBy       *int64          `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty"`
	ReviewNotes      *string         `json:"review_notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsPending reports whether the claim is still awaiting review.
func (c *OwnershipClaim) IsPending() bool {
	return c.Status == ClaimStatusPending
}

// CanReview checks the pending→decided transition. Use inside the review
// transaction, after the row is locked.
func (c *OwnershipClaim) CanReview() error {
	if !c.IsPending() {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim already reviewed")
	}
	return nil
}

// ApplyReview transitions the claim to its terminal status. Call CanReview
// first; the transition is never reversed.
func (c *OwnershipClaim) ApplyReview(reviewerID int64, approved bool, notes *string, now time.Time) {
	if approved {
		c.Status = ClaimStatusApproved
	} else {
		c.Status = ClaimStatusRejected
	}
	c.ReviewedBy = &reviewerID
	c.ReviewedAt = &now
	c.ReviewNotes = notes
	c.UpdatedAt = now
}

// RosterRole is a member's role in an entity's membership roster.
type RosterRole string

const (
	RosterRoleOwner  RosterRole = "owner"
	RosterRoleAdmin  RosterRole = "admin"
	RosterRoleMember RosterRole = "member"
)

// RosterStatus is a roster row's activity state. Inactive rows never confer
// privileges.
type RosterStatus string

const (
	RosterStatusActive   RosterStatus = "active"
	RosterStatusInactive RosterStatus = "inactive"
)

// OwnershipCheck is the result of an ownership role check for one user
// against one entity.
type OwnershipCheck struct {
	IsOwner bool        `json:"is_owner"`
	IsAdmin bool        `json:"is_admin"`
	Role    *RosterRole `json:"role,omitempty"`
}
