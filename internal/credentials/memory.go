package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps the record in process memory. Useful for tests and
// short-lived CLI sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	record *Record
}

func NewMemoryStore(initial *Record) *MemoryStore {
	m := &MemoryStore{}
	if initial != nil {
		rec := *initial
		m.record = &rec
	}
	return m
}

func (m *MemoryStore) Read(_ context.Context) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return nil, nil
	}
	rec := *m.record
	return &rec, nil
}

func (m *MemoryStore) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = &rec
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	return nil
}
