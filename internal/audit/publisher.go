package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists audit events. Append-only; nothing updates or deletes them.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It writes through the storage
// layer so tests can swap sinks, and so the postgres store can join the
// caller's transaction via the context.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}
