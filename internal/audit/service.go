package audit

import (
	"context"
	"time"
)

// Store is the persistence port for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByScan(ctx context.Context, scanID string) ([]Event, error)
}

// Service captures structured audit events. It is append-only and uses the
// store port for persistence so tests can swap sinks easily.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return s.store.Append(ctx, event)
}

func (s *Service) List(ctx context.Context, scanID string) ([]Event, error) {
	return s.store.ListByScan(ctx, scanID)
}
