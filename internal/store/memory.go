package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryKV is an in-memory KV used in tests and for ephemeral embedding.
type MemoryKV struct {
	mu       sync.RWMutex
	families map[string]map[string][]byte
}

// NewMemoryKV constructs an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{families: make(map[string]map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, family, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.families[family][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (m *MemoryKV) Put(ctx context.Context, family, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.families[family] == nil {
		m.families[family] = make(map[string][]byte)
	}
	m.families[family][key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, family, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.families[family], key)
	return nil
}

func (m *MemoryKV) GetAll(ctx context.Context, family string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.families[family]))
	for k := range m.families[family] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Value: append([]byte(nil), m.families[family][k]...)})
	}
	return entries, nil
}

// Len returns the number of keys in a family.
func (m *MemoryKV) Len(family string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.families[family])
}
