package directory

import (
	"context"
	"sync"

	"clubhub/pkg/platform/sentinel"
)

// InMemory implements Directory for tests and dev mode.
type InMemory struct {
	mu    sync.RWMutex
	users map[int64]User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[int64]User)}
}

// SeedUser registers a user record.
func (m *InMemory) SeedUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *InMemory) FindByID(_ context.Context, userID int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := u
	return &cp, nil
}
