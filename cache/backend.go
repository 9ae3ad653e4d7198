package cache

import (
	"context"
	"sync"
	"time"
)

// Backend stores serialized upstream responses with a time-to-live
type Backend interface {
	// Get returns the stored value and whether it was present and unexpired
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// memoryEntry represents a cached value with its expiry
type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryBackend is a process-local Backend
type MemoryBackend struct {
	mutex   sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	entry, found := m.entries[key]
	m.mutex.RUnlock()

	if !found {
		return nil, false, nil
	}
	if !m.now().Before(entry.expires) {
		m.mutex.Lock()
		if current, ok := m.entries[key]; ok && current.expires.Equal(entry.expires) {
			delete(m.entries, key)
		}
		m.mutex.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: m.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included
func (m *MemoryBackend) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}

var _ Backend = (*MemoryBackend)(nil)
