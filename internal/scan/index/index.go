// Package index maintains the registry's single well-known index key: the
// ordered set of every record identifier ever created. The external store has
// no list operation, so this is the only way records become discoverable.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"breachscan/internal/kvstore"
	"breachscan/pkg/sentinel"
)

// Manager owns the index key. No other component writes it.
type Manager struct {
	store  kvstore.Store
	logger *slog.Logger
}

func NewManager(store kvstore.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// ListIDs returns every registered identifier. A missing or corrupt index and
// an unavailable store both degrade to an empty slice: the registry may be
// freshly initialized, and listing must never crash.
func (m *Manager) ListIDs(ctx context.Context) ([]string, error) {
	if !m.store.IsAvailable(ctx) {
		return nil, nil
	}
	raw, err := m.store.Get(ctx, kvstore.IndexKey)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	ids, err := decode(raw)
	if err != nil {
		m.logger.WarnContext(ctx, "index payload undecodable, treating as empty", "error", err)
		return nil, nil
	}
	return ids, nil
}

// Append registers an identifier. Appending an id that is already present is
// a no-op, so the index never holds duplicates.
//
// On adapters with the Swap extension the read-modify-write is atomic. On
// plain adapters two concurrent appends from independent sessions can race
// last-writer-wins; that is the accepted baseline, not a guaranteed invariant.
func (m *Manager) Append(ctx context.Context, id string) error {
	update := func(old []byte) ([]byte, error) {
		ids, err := decode(old)
		if err != nil {
			m.logger.WarnContext(ctx, "index payload undecodable, rebuilding", "error", err)
			ids = nil
		}
		if slices.Contains(ids, id) {
			return old, nil
		}
		return json.Marshal(append(ids, id))
	}

	if swapper, ok := m.store.(kvstore.Swapper); ok {
		if err := swapper.Swap(ctx, kvstore.IndexKey, update); err != nil {
			return fmt.Errorf("append id %s: %w", id, err)
		}
		return nil
	}

	var old []byte
	if m.store.IsAvailable(ctx) {
		raw, err := m.store.Get(ctx, kvstore.IndexKey)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("append id %s: read index: %w", id, err)
		}
		old = raw
	}
	next, err := update(old)
	if err != nil {
		return fmt.Errorf("append id %s: %w", id, err)
	}
	if string(next) == string(old) {
		return nil
	}
	if err := m.store.Set(ctx, kvstore.IndexKey, next); err != nil {
		return fmt.Errorf("append id %s: write index: %w", id, err)
	}
	return nil
}

func decode(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
