package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memValue struct {
	payload []byte
	at      time.Time
}

// MemoryBackend keeps entries in process memory. It is used when no
// persistent backend is configured and in tests.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string]memValue
	writes int

	// FailWith, when set, is returned by every call.
	FailWith error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]memValue)}
}

// Get returns the stored payload and its write time.
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, time.Time{}, false, m.FailWith
	}
	v, ok := m.data[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return slices.Clone(v.payload), v.at, true, nil
}

// SetMany stores every item under the same write time.
func (m *MemoryBackend) SetMany(ctx context.Context, items []Item, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, it := range items {
		m.data[it.Key] = memValue{payload: slices.Clone(it.Payload), at: at}
	}
	m.writes++
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.data, key)
	return nil
}

// Writes returns the number of successful SetMany calls.
func (m *MemoryBackend) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Corrupt overwrites key with payload without counting a write.
func (m *MemoryBackend) Corrupt(key string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memValue{payload: payload, at: time.Now()}
}
