package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"clubhub/internal/audit"
	"clubhub/internal/ownership/models"
	dErrors "clubhub/pkg/domain-errors"
	"clubhub/pkg/requestcontext"
	"clubhub/pkg/secrets"
)

const adminAssignReason = "Admin created unclaimed entity"

// TransferOwnership moves an entity from its current owner to another user.
// Only the current owner or a system administrator may transfer; roster
// admins may not. For rostered kinds the previous owner is demoted to an
// active admin row and the new owner gets an active owner row.
func (s *Service) TransferOwnership(ctx context.Context, kind models.EntityKind, entityID, actingUserID, newOwnerID int64, reason *string) (*models.OwnershipTransfer, error) {
	ctx, span := startSpan(ctx, "ownership.transfer")
	defer span.End()

	binding, err := s.registry.ForKind(kind)
	if err != nil {
		return nil, err
	}
	acting, err := s.findUser(ctx, actingUserID, "acting user")
	if err != nil {
		return nil, err
	}
	newOwner, err := s.findUser(ctx, newOwnerID, "target user")
	if err != nil {
		return nil, err
	}

	var transfer *models.OwnershipTransfer
	err = s.runInTx(ctx, func(ctx context.Context) error {
		entity, err := s.store.FindEntityForUpdate(ctx, kind, entityID)
		if err != nil {
			return wrapStoreErr(err, "entity")
		}

		isOwner := entity.OwnerID != nil && *entity.OwnerID == actingUserID
		if binding.HasRoster() {
			roles, err := s.evaluateRoles(ctx, kind, entity, actingUserID)
			if err != nil {
				return err
			}
			isOwner = roles.IsOwner
		}
		if !isOwner && !acting.IsSystemAdmin {
			return dErrors.New(dErrors.CodeForbidden, "only the current owner or a system administrator can transfer ownership")
		}
		if entity.OwnerID != nil && *entity.OwnerID == newOwnerID {
			return dErrors.New(dErrors.CodeValidation, "new owner must differ from the current owner")
		}

		now := requestcontext.Now(ctx)
		previousOwner := entity.OwnerID
		if err := s.store.SetOwner(ctx, kind, entityID, &newOwnerID, nil, false, &now); err != nil {
			return wrapStoreErr(err, "entity")
		}
		if binding.HasRoster() {
			if previousOwner != nil {
				if err := s.store.UpsertRosterRole(ctx, kind, entityID, *previousOwner, models.RosterRoleAdmin, models.RosterStatusActive); err != nil {
					return wrapStoreErr(err, "roster")
				}
			}
			if err := s.store.UpsertRosterRole(ctx, kind, entityID, newOwnerID, models.RosterRoleOwner, models.RosterStatusActive); err != nil {
				return wrapStoreErr(err, "roster")
			}
		}

		transfer = &models.OwnershipTransfer{
			ID:           uuid.New(),
			EntityKind:   kind,
			EntityID:     entityID,
			FromUserID:   previousOwner,
			ToUserID:     newOwnerID,
			ToUserName:   newOwner.DisplayName,
			TransferType: models.TransferTypeTransfer,
			Reason:       reason,
			PerformedBy:  &actingUserID,
			CreatedAt:    now,
		}
		if err := s.store.AppendTransfer(ctx, transfer); err != nil {
			return wrapStoreErr(err, "transfer ledger")
		}
		return s.emitAudit(ctx, audit.Event{
			Action:     audit.ActionOwnershipTransferred,
			EntityKind: kind,
			EntityID:   entityID,
			ActorID:    actingUserID,
			Detail:     fmt.Sprintf("to user %d", newOwnerID),
			Timestamp:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementTransfers(models.TransferTypeTransfer)
	s.logger.InfoContext(ctx, "ownership transferred",
		"kind", kind, "entity_id", entityID, "to_user_id", newOwnerID, "performed_by", actingUserID)
	return transfer, nil
}

// CreateUnclaimedEntity puts an existing entity into the claimable pool:
// owner cleared, a fresh claim code minted, claimable set. System
// administrators only. Returns the plaintext claim code for out-of-band
// distribution; it remains readable through the unclaimed listing.
func (s *Service) CreateUnclaimedEntity(ctx context.Context, kind models.EntityKind, entityID, adminUserID int64) (string, error) {
	ctx, span := startSpan(ctx, "ownership.create_unclaimed")
	defer span.End()

	if _, err := s.registry.ForKind(kind); err != nil {
		return "", err
	}
	if _, err := s.requireSystemAdmin(ctx, adminUserID, "acting user"); err != nil {
		return "", err
	}
	code, err := secrets.GenerateClaimCode()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "claim code generation failed")
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindEntityForUpdate(ctx, kind, entityID); err != nil {
			return wrapStoreErr(err, "entity")
		}
		now := requestcontext.Now(ctx)
		if err := s.store.SetOwner(ctx, kind, entityID, nil, &code, true, nil); err != nil {
			return wrapStoreErr(err, "entity")
		}
		reason := adminAssignReason
		transfer := &models.OwnershipTransfer{
			ID:           uuid.New(),
			EntityKind:   kind,
			EntityID:     entityID,
			ToUserID:     adminUserID,
			TransferType: models.TransferTypeAdminAssign,
			Reason:       &reason,
			PerformedBy:  &adminUserID,
			CreatedAt:    now,
		}
		if err := s.store.AppendTransfer(ctx, transfer); err != nil {
			return wrapStoreErr(err, "transfer ledger")
		}
		return s.emitAudit(ctx, audit.Event{
			Action:     audit.ActionUnclaimedMinted,
			EntityKind: kind,
			EntityID:   entityID,
			ActorID:    adminUserID,
			Timestamp:  now,
		})
	})
	if err != nil {
		return "", err
	}

	s.incrementTransfers(models.TransferTypeAdminAssign)
	if s.metrics != nil {
		s.metrics.IncrementClaimCodesGenerated()
	}
	s.logger.InfoContext(ctx, "unclaimed entity minted", "kind", kind, "entity_id", entityID, "admin_id", adminUserID)
	return code, nil
}

// ClaimWithCode grants ownership of a claimable entity to the caller when the
// presented code matches. The row lock taken before validation means two
// concurrent claims with the correct code resolve to exactly one winner; the
// loser observes an owned entity and gets a conflict.
func (s *Service) ClaimWithCode(ctx context.Context, kind models.EntityKind, entityID int64, claimCode string, claimingUserID int64) (*models.OwnershipTransfer, error) {
	ctx, span := startSpan(ctx, "ownership.claim_with_code")
	defer span.End()

	binding, err := s.registry.ForKind(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claimCode) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "claim code is required")
	}
	if err := s.allowClaimAttempt(ctx, kind, entityID, claimingUserID); err != nil {
		return nil, err
	}
	claimer, err := s.findUser(ctx, claimingUserID, "claiming user")
	if err != nil {
		return nil, err
	}

	var transfer *models.OwnershipTransfer
	err = s.runInTx(ctx, func(ctx context.Context) error {
		entity, err := s.store.FindEntityForUpdate(ctx, kind, entityID)
		if err != nil {
			return wrapStoreErr(err, "entity")
		}
		if entity.OwnerID != nil {
			return dErrors.New(dErrors.CodeConflict, "entity already has an owner")
		}
		if !entity.IsClaimable {
			return dErrors.New(dErrors.CodeValidation, "entity is not available for claiming")
		}
		if entity.ClaimCode == nil || !secrets.Equal(*entity.ClaimCode, claimCode) {
			return dErrors.New(dErrors.CodeValidation, "invalid claim code")
		}

		now := requestcontext.Now(ctx)
		if err := s.store.SetOwner(ctx, kind, entityID, &claimingUserID, nil, false, &now); err != nil {
			return wrapStoreErr(err, "entity")
		}
		if binding.HasRoster() {
			if err := s.store.UpsertRosterRole(ctx, kind, entityID, claimingUserID, models.RosterRoleOwner, models.RosterStatusActive); err != nil {
				return wrapStoreErr(err, "roster")
			}
		}
		transfer = &models.OwnershipTransfer{
			ID:           uuid.New(),
			EntityKind:   kind,
			EntityID:     entityID,
			ToUserID:     claimingUserID,
			ToUserName:   claimer.DisplayName,
			TransferType: models.TransferTypeClaim,
			PerformedBy:  &claimingUserID,
			CreatedAt:    now,
		}
		if err := s.store.AppendTransfer(ctx, transfer); err != nil {
			return wrapStoreErr(err, "transfer ledger")
		}
		return s.emitAudit(ctx, audit.Event{
			Action:     audit.ActionEntityClaimed,
			EntityKind: kind,
			EntityID:   entityID,
			ActorID:    claimingUserID,
			Timestamp:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementTransfers(models.TransferTypeClaim)
	s.logger.InfoContext(ctx, "entity claimed", "kind", kind, "entity_id", entityID, "claimer_id", claimingUserID)
	return transfer, nil
}

// allowClaimAttempt consults the attempt limiter. Limiter infrastructure
// failures fail open with a warning: the high-entropy code is the security
// boundary, the limiter only dampens guessing.
func (s *Service) allowClaimAttempt(ctx context.Context, kind models.EntityKind, entityID, claimingUserID int64) error {
	if s.attempts == nil {
		return nil
	}
	key := fmt.Sprintf("%s:%d:%d", kind, entityID, claimingUserID)
	allowed, err := s.attempts.Allow(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "claim attempt limiter unavailable, allowing attempt", "error", err)
		return nil
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.IncrementClaimAttemptsThrottled()
		}
		return dErrors.New(dErrors.CodeTooManyRequests, "too many claim attempts, try again later")
	}
	return nil
}

// RegenerateClaimCode replaces an entity's claim code and marks it claimable,
// without touching current ownership. Restricted to users holding the admin
// flag for the entity. No ledger row: ownership does not change.
func (s *Service) RegenerateClaimCode(ctx context.Context, kind models.EntityKind, entityID, actingUserID int64) (string, error) {
	ctx, span := startSpan(ctx, "ownership.regenerate_claim_code")
	defer span.End()

	if _, err := s.registry.ForKind(kind); err != nil {
		return "", err
	}
	code, err := secrets.GenerateClaimCode()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "claim code generation failed")
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		entity, err := s.store.FindEntityForUpdate(ctx, kind, entityID)
		if err != nil {
			return wrapStoreErr(err, "entity")
		}
		roles, err := s.evaluateRoles(ctx, kind, entity, actingUserID)
		if err != nil {
			return err
		}
		if !roles.IsAdmin {
			return dErrors.New(dErrors.CodeForbidden, "administrator access to the entity is required")
		}
		if err := s.store.SetClaimCode(ctx, kind, entityID, code); err != nil {
			return wrapStoreErr(err, "entity")
		}
		return s.emitAudit(ctx, audit.Event{
			Action:     audit.ActionClaimCodeRegenerated,
			EntityKind: kind,
			EntityID:   entityID,
			ActorID:    actingUserID,
			Timestamp:  requestcontext.Now(ctx),
		})
	})
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.IncrementClaimCodesGenerated()
	}
	s.logger.InfoContext(ctx, "claim code regenerated", "kind", kind, "entity_id", entityID, "performed_by", actingUserID)
	return code, nil
}
