package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"clubhub/internal/audit"
	"clubhub/internal/ownership/models"
	dErrors "clubhub/pkg/domain-errors"
	"clubhub/pkg/requestcontext"
)

// SubmitClaimRequest files a request-for-ownership over an ownerless entity.
// The claim waits in the review queue until a system administrator decides
// it. At most one pending claim per (entity, claimer) can exist; the store
// enforces the same under concurrency.
func (s *Service) SubmitClaimRequest(ctx context.Context, kind models.EntityKind, entityID, claimerID int64, claimReason string, verificationInfo json.RawMessage) (*models.OwnershipClaim, error) {
	ctx, span := startSpan(ctx, "ownership.submit_claim")
	defer span.End()

	if _, err := s.registry.ForKind(kind); err != nil {
		return nil, err
	}
	claimReason = strings.TrimSpace(claimReason)
	if claimReason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "claim reason is required")
	}
	if _, err := s.findUser(ctx, claimerID, "claiming user"); err != nil {
		return nil, err
	}

	var claim *models.OwnershipClaim
	err := s.runInTx(ctx, func(ctx context.Context) error {
		entity, err := s.store.FindEntityForUpdate(ctx, kind, entityID)
		if err != nil {
			return wrapStoreErr(err, "entity")
		}
		if entity.OwnerID != nil {
			return dErrors.New(dErrors.CodeConflict, "entity already has an owner; ask the owner for a transfer instead")
		}
		pending, err := s.store.HasPendingClaim(ctx, kind, entityID, claimerID)
		if err != nil {
			return wrapStoreErr(err, "claim")
		}
		if pending {
			return dErrors.New(dErrors.CodeConflict, "a pending claim for this entity already exists")
		}

		now := requestcontext.Now(ctx)
		claim = &models.OwnershipClaim{
			ID:               uuid.New(),
			EntityKind:       kind,
			EntityID:         entityID,
			EntityName:       entity.Name,
			ClaimerID:        claimerID,
			Status:           models.ClaimStatusPending,
			ClaimReason:      claimReason,
			VerificationInfo: verificationInfo,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.store.CreateClaim(ctx, claim); err != nil {
			return wrapStoreErr(err, "pending claim")
		}
		return s.emitAudit(ctx, audit.Event{
			Action:     audit.ActionClaimSubmitted,
			EntityKind: kind,
			EntityID:   entityID,
			ActorID:    claimerID,
			Detail:     "claim " + claim.ID.String(),
			Timestamp:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementClaimsSubmitted()
	}
	s.logger.InfoContext(ctx, "ownership claim submitted",
		"kind", kind, "entity_id", entityID, "claimer_id", claimerID, "claim_id", claim.ID)
	return claim, nil
}

// ReviewClaimRequest decides a pending claim. Approval grants ownership and
// appends a claim ledger row in the same transaction; rejection only records
// the decision. Either way the claim leaves the pending state exactly once.
func (s *Service) ReviewClaimRequest(ctx context.Context, claimID uuid.UUID, reviewerID int64, approved bool, reviewNotes *string) (*models.OwnershipClaim, error) {
	ctx, span := startSpan(ctx, "ownership.review_claim")
	defer span.End()

	if _, err := s.requireSystemAdmin(ctx, reviewerID, "reviewer"); err != nil {
		return nil, err
	}

	var claim *models.OwnershipClaim
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.store.FindClaimForUpdate(ctx, claimID)
		if err != nil {
			return wrapStoreErr(err, "claim")
		}
		if err := claim.CanReview(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "claim already reviewed")
		}

		// All checks run before the first mutation so a conflicting approval
		// leaves the claim pending.
		now := requestcontext.Now(ctx)
		if approved {
			binding, err := s.registry.ForKind(claim.EntityKind)
			if err != nil {
				return err
			}
			entity, err := s.store.FindEntityForUpdate(ctx, claim.EntityKind, claim.EntityID)
			if err != nil {
				return wrapStoreErr(err, "entity")
			}
			if entity.OwnerID != nil {
				return dErrors.New(dErrors.CodeConflict, "entity already has an owner")
			}

			claim.ApplyReview(reviewerID, approved, reviewNotes, now)
			if err := s.store.UpdateClaim(ctx, claim); err != nil {
				return wrapStoreErr(err, "claim")
			}
			if err := s.store.SetOwner(ctx, claim.EntityKind, claim.EntityID, &claim.ClaimerID, nil, false, &now); err != nil {
				return wrapStoreErr(err, "entity")
			}
			if binding.HasRoster() {
				if err := s.store.UpsertRosterRole(ctx, claim.EntityKind, claim.EntityID, claim.ClaimerID, models.RosterRoleOwner, models.RosterStatusActive); err != nil {
					return wrapStoreErr(err, "roster")
				}
			}
			reason := "Claim approved"
			if reviewNotes != nil && strings.TrimSpace(*reviewNotes) != "" {
				reason += ": " + *reviewNotes
			}
			transfer := &models.OwnershipTransfer{
				ID:           uuid.New(),
				EntityKind:   claim.EntityKind,
				EntityID:     claim.EntityID,
				ToUserID:     claim.ClaimerID,
				TransferType: models.TransferTypeClaim,
				Reason:       &reason,
				PerformedBy:  &reviewerID,
				CreatedAt:    now,
			}
			if err := s.store.AppendTransfer(ctx, transfer); err != nil {
				return wrapStoreErr(err, "transfer ledger")
			}
		} else {
			claim.ApplyReview(reviewerID, approved, reviewNotes, now)
			if err := s.store.UpdateClaim(ctx, claim); err != nil {
				return wrapStoreErr(err, "claim")
			}
		}

		detail := "rejected"
		if approved {
			detail = "approved"
		}
		return s.emitAudit(ctx, audit.Event{
			Action:     audit.ActionClaimReviewed,
			EntityKind: claim.EntityKind,
			EntityID:   claim.EntityID,
			ActorID:    reviewerID,
			Detail:     detail + " claim " + claim.ID.String(),
			Timestamp:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	decision := "rejected"
	if approved {
		decision = "approved"
		s.incrementTransfers(models.TransferTypeClaim)
	}
	if s.metrics != nil {
		s.metrics.IncrementClaimsReviewed(decision)
	}
	s.logger.InfoContext(ctx, "ownership claim reviewed",
		"claim_id", claim.ID, "decision", decision, "reviewer_id", reviewerID)
	return claim, nil
}

// PendingClaims lists the review queue, oldest first, optionally filtered to
// one kind. Restricted to system administrators. Entity and claimer names are
// resolved for display; entities or users deleted since submission enrich to
// empty names.
func (s *Service) PendingClaims(ctx context.Context, actingUserID int64, kind *models.EntityKind) ([]*models.OwnershipClaim, error) {
	ctx, span := startSpan(ctx, "ownership.pending_claims")
	defer span.End()

	if _, err := s.requireSystemAdmin(ctx, actingUserID, "acting user"); err != nil {
		return nil, err
	}
	var kinds []models.EntityKind
	if kind != nil {
		if _, err := s.registry.ForKind(*kind); err != nil {
			return nil, err
		}
		kinds = []models.EntityKind{*kind}
	}
	claims, err := s.store.ListPendingClaims(ctx, kinds)
	if err != nil {
		return nil, wrapStoreErr(err, "pending claims")
	}
	for _, c := range claims {
		if c.EntityName == "" {
			if entity, err := s.store.FindEntity(ctx, c.EntityKind, c.EntityID); err == nil {
				c.EntityName = entity.Name
			}
		}
		c.ClaimerName = s.displayName(ctx, c.ClaimerID)
	}
	return claims, nil
}
