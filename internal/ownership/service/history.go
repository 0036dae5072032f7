package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"clubhub/internal/ownership/models"
)

// TransferHistory returns the entity's ledger, newest first, with display
// names resolved for the from, to, and performing users.
func (s *Service) TransferHistory(ctx context.Context, kind models.EntityKind, entityID int64) ([]*models.OwnershipTransfer, error) {
	ctx, span := startSpan(ctx, "ownership.transfer_history")
	defer span.End()

	if _, err := s.registry.ForKind(kind); err != nil {
		return nil, err
	}
	if _, err := s.store.FindEntity(ctx, kind, entityID); err != nil {
		return nil, wrapStoreErr(err, "entity")
	}
	transfers, err := s.store.ListTransfers(ctx, kind, entityID)
	if err != nil {
		return nil, wrapStoreErr(err, "transfer ledger")
	}

	names := map[int64]string{}
	resolve := func(userID int64) string {
		if name, ok := names[userID]; ok {
			return name
		}
		name := s.displayName(ctx, userID)
		names[userID] = name
		return name
	}
	for _, t := range transfers {
		if t.FromUserID != nil {
			t.FromUserName = resolve(*t.FromUserID)
		}
		t.ToUserName = resolve(t.ToUserID)
		if t.PerformedBy != nil {
			t.PerformedByName = resolve(*t.PerformedBy)
		}
	}
	return transfers, nil
}

// OwnedEntities returns everything the user currently owns, one kind or all
// kinds. Per-kind queries are independent, so the all-kinds view fans out
// concurrently and merges in the registry's kind order. Claim codes are
// stripped; this is not an administrative surface.
func (s *Service) OwnedEntities(ctx context.Context, userID int64, kind *models.EntityKind) ([]*models.OwnedEntity, error) {
	ctx, span := startSpan(ctx, "ownership.owned_entities")
	defer span.End()

	entities, err := s.collectByKind(ctx, kind, func(ctx context.Context, k models.EntityKind) ([]*models.OwnedEntity, error) {
		return s.store.ListOwnedByKind(ctx, k, userID)
	})
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		e.ClaimCode = nil
		if e.OwnerID != nil {
			e.OwnerName = s.displayName(ctx, *e.OwnerID)
		}
	}
	return entities, nil
}

// UnclaimedEntities returns the claimable pool with plaintext claim codes.
// This is the only read surface that reveals codes, so it is restricted to
// system administrators.
func (s *Service) UnclaimedEntities(ctx context.Context, actingUserID int64, kind *models.EntityKind) ([]*models.OwnedEntity, error) {
	ctx, span := startSpan(ctx, "ownership.unclaimed_entities")
	defer span.End()

	if _, err := s.requireSystemAdmin(ctx, actingUserID, "acting user"); err != nil {
		return nil, err
	}
	return s.collectByKind(ctx, kind, s.store.ListUnclaimedByKind)
}

// collectByKind runs the per-kind lister for one kind, or for every
// configured kind concurrently, merging results in registry order.
func (s *Service) collectByKind(ctx context.Context, kind *models.EntityKind, list func(ctx context.Context, k models.EntityKind) ([]*models.OwnedEntity, error)) ([]*models.OwnedEntity, error) {
	if kind != nil {
		if _, err := s.registry.ForKind(*kind); err != nil {
			return nil, err
		}
		entities, err := list(ctx, *kind)
		if err != nil {
			return nil, wrapStoreErr(err, "entities")
		}
		return entities, nil
	}

	kinds := s.registry.Kinds()
	buckets := make([][]*models.OwnedEntity, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			entities, err := list(gctx, k)
			if err != nil {
				return wrapStoreErr(err, "entities")
			}
			buckets[i] = entities
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []*models.OwnedEntity
	for _, bucket := range buckets {
		merged = append(merged, bucket...)
	}
	return merged, nil
}
