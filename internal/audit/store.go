package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"breachscan/internal/kvstore"
	"breachscan/pkg/sentinel"
)

// MemoryStore keeps audit events in process. Default for tests and the
// memory-backed deployment.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]Event)}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ScanID] = append(s.events[event.ScanID], event)
	return nil
}

func (s *MemoryStore) ListByScan(_ context.Context, scanID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[scanID]...), nil
}

const auditKeyPrefix = "audit_"

// KVStore persists each scan's trail as a JSON array in the same external
// key-value store as the records, one key per scan id.
type KVStore struct {
	store kvstore.Store
}

func NewKVStore(store kvstore.Store) *KVStore {
	return &KVStore{store: store}
}

func (s *KVStore) Append(ctx context.Context, event Event) error {
	key := auditKeyPrefix + event.ScanID
	update := func(old []byte) ([]byte, error) {
		var events []Event
		if len(old) > 0 {
			// A corrupt trail restarts; audit is best-effort.
			_ = json.Unmarshal(old, &events)
		}
		return json.Marshal(append(events, event))
	}

	if swapper, ok := s.store.(kvstore.Swapper); ok {
		return swapper.Swap(ctx, key, update)
	}

	old, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("read audit trail %s: %w", event.ScanID, err)
	}
	next, err := update(old)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, next)
}

func (s *KVStore) ListByScan(ctx context.Context, scanID string) ([]Event, error) {
	raw, err := s.store.Get(ctx, auditKeyPrefix+scanID)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, nil
	}
	return events, nil
}
