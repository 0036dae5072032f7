package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/ownership/models"
	"clubhub/internal/ownership/registry"
	"clubhub/pkg/platform/sentinel"
)

// InMemory implements Store with maps and a coarse lock. It backs unit tests
// and dev mode; postgres is the production implementation.
type InMemory struct {
	mu       sync.RWMutex
	registry *registry.Registry

	entities  map[models.EntityKind]map[int64]*models.OwnedEntity
	rosters   map[models.EntityKind]map[int64]map[int64]rosterRow
	transfers []*models.OwnershipTransfer
	claims    map[uuid.UUID]*models.OwnershipClaim
}

type rosterRow struct {
	role   models.RosterRole
	status models.RosterStatus
}

// NewInMemory constructs an empty in-memory store over the given registry.
func NewInMemory(reg *registry.Registry) *InMemory {
	m := &InMemory{
		registry: reg,
		entities: make(map[models.EntityKind]map[int64]*models.OwnedEntity),
		rosters:  make(map[models.EntityKind]map[int64]map[int64]rosterRow),
		claims:   make(map[uuid.UUID]*models.OwnershipClaim),
	}
	for _, kind := range reg.Kinds() {
		m.entities[kind] = make(map[int64]*models.OwnedEntity)
		m.rosters[kind] = make(map[int64]map[int64]rosterRow)
	}
	return m
}

// SeedEntity registers an entity record. The wider platform owns entity
// creation; tests and dev mode use this in its place.
func (m *InMemory) SeedEntity(kind models.EntityKind, entityID int64, name string, ownerID *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[kind][entityID] = &models.OwnedEntity{
		Kind:    kind,
		ID:      entityID,
		Name:    name,
		OwnerID: copyInt64(ownerID),
	}
}

// RosterRow reports the stored (role, status) for an entity member, for test
// assertions.
func (m *InMemory) RosterRow(kind models.EntityKind, entityID, userID int64) (models.RosterRole, models.RosterStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rosters[kind][entityID][userID]
	return row.role, row.status, ok
}

func (m *InMemory) FindEntity(_ context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findEntityLocked(kind, entityID)
}

// FindEntityForUpdate relies on the coarse-lock Tx implementation for
// isolation; in-memory there is no row lock to take.
func (m *InMemory) FindEntityForUpdate(ctx context.Context, kind models.EntityKind, entityID int64) (*models.OwnedEntity, error) {
	return m.FindEntity(ctx, kind, entityID)
}

func (m *InMemory) findEntityLocked(kind models.EntityKind, entityID int64) (*models.OwnedEntity, error) {
	byID, ok := m.entities[kind]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e, ok := byID[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyEntity(e), nil
}

func (m *InMemory) SetOwner(_ context.Context, kind models.EntityKind, entityID int64, ownerID *int64, claimCode *string, claimable bool, claimedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[kind][entityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.OwnerID = copyInt64(ownerID)
	e.ClaimCode = copyString(claimCode)
	e.IsClaimable = claimable
	e.ClaimedAt = copyTime(claimedAt)
	return nil
}

func (m *InMemory) SetClaimCode(_ context.Context, kind models.EntityKind, entityID int64, claimCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[kind][entityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	code := claimCode
	e.ClaimCode = &code
	e.IsClaimable = true
	return nil
}

func (m *InMemory) ActiveRosterRole(_ context.Context, kind models.EntityKind, entityID, userID int64) (models.RosterRole, error) {
	binding, err := m.registry.ForKind(kind)
	if err != nil {
		return "", err
	}
	if !binding.HasRoster() {
		return "", sentinel.ErrInvalidState
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rosters[kind][entityID][userID]
	if !ok || row.status != models.RosterStatusActive {
		return "", sentinel.ErrNotFound
	}
	return row.role, nil
}

func (m *InMemory) UpsertRosterRole(_ context.Context, kind models.EntityKind, entityID, userID int64, role models.RosterRole, status models.RosterStatus) error {
	binding, err := m.registry.ForKind(kind)
	if err != nil {
		return err
	}
	if !binding.HasRoster() {
		return sentinel.ErrInvalidState
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byEntity := m.rosters[kind]
	if byEntity[entityID] == nil {
		byEntity[entityID] = make(map[int64]rosterRow)
	}
	byEntity[entityID][userID] = rosterRow{role: role, status: status}
	return nil
}

func (m *InMemory) AppendTransfer(_ context.Context, transfer *models.OwnershipTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *transfer
	m.transfers = append(m.transfers, &t)
	return nil
}

func (m *InMemory) ListTransfers(_ context.Context, kind models.EntityKind, entityID int64) ([]*models.OwnershipTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Append order is chronological; history reads newest first.
	var out []*models.OwnershipTransfer
	for i := len(m.transfers) - 1; i >= 0; i-- {
		t := m.transfers[i]
		if t.EntityKind == kind && t.EntityID == entityID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *InMemory) ListOwnedByKind(_ context.Context, kind models.EntityKind, userID int64) ([]*models.OwnedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.OwnedEntity
	for _, e := range m.entities[kind] {
		if e.OwnerID != nil && *e.OwnerID == userID {
			out = append(out, copyEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) ListUnclaimedByKind(_ context.Context, kind models.EntityKind) ([]*models.OwnedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.OwnedEntity
	for _, e := range m.entities[kind] {
		if e.OwnerID == nil && e.IsClaimable {
			out = append(out, copyEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) CreateClaim(_ context.Context, claim *models.OwnershipClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.claims {
		if existing.EntityKind == claim.EntityKind &&
			existing.EntityID == claim.EntityID &&
			existing.ClaimerID == claim.ClaimerID &&
			existing.IsPending() {
			return sentinel.ErrConflict
		}
	}
	cp := *claim
	m.claims[claim.ID] = &cp
	return nil
}

func (m *InMemory) FindClaimForUpdate(_ context.Context, claimID uuid.UUID) (*models.OwnershipClaim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *InMemory) UpdateClaim(_ context.Context, claim *models.OwnershipClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[claim.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *claim
	m.claims[claim.ID] = &cp
	return nil
}

func (m *InMemory) HasPendingClaim(_ context.Context, kind models.EntityKind, entityID, claimerID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.claims {
		if c.EntityKind == kind && c.EntityID == entityID && c.ClaimerID == claimerID && c.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (m *InMemory) ListPendingClaims(_ context.Context, kinds []models.EntityKind) ([]*models.OwnershipClaim, error) {
	wanted := make(map[models.EntityKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.OwnershipClaim
	for _, c := range m.claims {
		if !c.IsPending() {
			continue
		}
		if len(kinds) > 0 && !wanted[c.EntityKind] {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// InMemoryTx serializes mutating operations with a coarse lock, standing in
// for database transactions in tests and dev mode.
type InMemoryTx struct {
	mu sync.Mutex
}

// NewInMemoryTx constructs the coarse-lock transaction boundary.
func NewInMemoryTx() *InMemoryTx {
	return &InMemoryTx{}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

func copyEntity(e *models.OwnedEntity) *models.OwnedEntity {
	cp := *e
	cp.OwnerID = copyInt64(e.OwnerID)
	cp.ClaimCode = copyString(e.ClaimCode)
	cp.ClaimedAt = copyTime(e.ClaimedAt)
	return &cp
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
