package service

import (
	"context"
	"errors"

	"clubhub/internal/ownership/models"
	"clubhub/pkg/platform/sentinel"
)

// GetOwnership returns the ownership view of one entity, with the owner's
// display name resolved. Claim codes are never exposed through this read; the
// administrative unclaimed listing is the only surface that reveals them.
func (s *Service) GetOwnership(ctx context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error) {
	ctx, span := startSpan(ctx, "ownership.get")
	defer span.End()

	if _, err := s.registry.ForKind(kind); err != nil {
		return nil, err
	}
	entity, err := s.store.FindEntity(ctx, kind, entityID)
	if err != nil {
		return nil, wrapStoreErr(err, "entity")
	}
	entity.ClaimCode = nil
	if entity.OwnerID != nil {
		entity.OwnerName = s.displayName(ctx, *entity.OwnerID)
	}
	return entity, nil
}

// CheckOwnership evaluates whether a user is the owner or an administrator of
// an entity. Nothing is cached; the check always reflects committed state.
func (s *Service) CheckOwnership(ctx context.Context, kind models.EntityKind, entityID, userID int64) (*models.OwnershipCheck, error) {
	ctx, span := startSpan(ctx, "ownership.check")
	defer span.End()

	binding, err := s.registry.ForKind(kind)
	if err != nil {
		return nil, err
	}
	entity, err := s.store.FindEntity(ctx, kind, entityID)
	if err != nil {
		return nil, wrapStoreErr(err, "entity")
	}
	return s.evaluateRoles(ctx, binding.Kind, entity, userID)
}

// evaluateRoles derives the role flags for one user against one entity.
//
// For rostered kinds an active roster row takes precedence over the owner
// column; without one the owner column alone decides. A platform
// administrator is granted the admin flag regardless of roster state.
func (s *Service) evaluateRoles(ctx context.Context, kind models.EntityKind, entity *models.OwnedEntity, userID int64) (*models.OwnershipCheck, error) {
	check := &models.OwnershipCheck{}
	directOwner := entity.OwnerID != nil && *entity.OwnerID == userID

	role, err := s.store.ActiveRosterRole(ctx, kind, entity.ID, userID)
	switch {
	case err == nil:
		check.Role = &role
		check.IsOwner = role == models.RosterRoleOwner
		check.IsAdmin = role == models.RosterRoleOwner || role == models.RosterRoleAdmin
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrInvalidState):
		check.IsOwner = directOwner
		check.IsAdmin = directOwner
	default:
		return nil, wrapStoreErr(err, "roster")
	}

	if !check.IsAdmin {
		if u, err := s.users.FindByID(ctx, userID); err == nil && u.IsSystemAdmin {
			check.IsAdmin = true
		}
	}
	return check, nil
}
