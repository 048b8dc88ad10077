package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntry carries the per-entry deadline; the LRU's own TTL acts as an
// upper bound on retention.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store backed by an expirable LRU. Entries
// honor their per-call TTL and are additionally evicted when the store
// reaches maxEntries.
type MemoryStore struct {
	lru        *expirable.LRU[string, memoryEntry]
	defaultTTL time.Duration
}

// NewMemoryStore creates a memory store. maxEntries bounds the LRU;
// defaultTTL applies when Set is called with a zero TTL.
func NewMemoryStore(maxEntries int, defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		lru:        expirable.NewLRU[string, memoryEntry](maxEntries, nil, defaultTTL),
		defaultTTL: defaultTTL,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.lru.Add(key, memoryEntry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	now := time.Now()
	var keys []string
	for _, key := range m.lru.Keys() {
		if entry, ok := m.lru.Peek(key); ok && now.Before(entry.expiresAt) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.lru.Purge()
	return nil
}
