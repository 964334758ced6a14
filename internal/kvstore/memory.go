package kvstore

import (
	"context"
	"sync"

	"breachscan/pkg/sentinel"
)

// Memory is an in-process Store. It keeps the default deployment and the test
// suite free of external dependencies, and exposes fault switches so failure
// paths stay testable.
type Memory struct {
	mu        sync.RWMutex
	data      map[string][]byte
	available bool
	rejecting bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte), available: true}
}

func (m *Memory) IsAvailable(_ context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.available {
		return nil, sentinel.ErrUnavailable
	}
	value, ok := m.data[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return sentinel.ErrUnavailable
	}
	if m.rejecting {
		return sentinel.ErrRejected
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

// Swap applies a read-modify-write under the store lock, so concurrent index
// appends cannot lose updates on this adapter.
func (m *Memory) Swap(_ context.Context, key string, update func(old []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return sentinel.ErrUnavailable
	}
	if m.rejecting {
		return sentinel.ErrRejected
	}
	next, err := update(m.data[key])
	if err != nil {
		return err
	}
	stored := make([]byte, len(next))
	copy(stored, next)
	m.data[key] = stored
	return nil
}

// SetAvailable toggles the availability probe. Used in tests and by the demo
// wiring to model a disconnected external store.
func (m *Memory) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// RejectWrites makes every Set fail with sentinel.ErrRejected, modelling a
// caller declining to authorize the write.
func (m *Memory) RejectWrites(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejecting = reject
}

// Corrupt overwrites a key with an undecodable payload. Test hook for the
// malformed-record paths.
func (m *Memory) Corrupt(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte("{not json")
}
