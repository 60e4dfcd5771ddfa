package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. It is used when no Redis address is
// configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	idleTTL time.Duration
	now     func() time.Time
}

func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTimeout
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, sid, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := storeKey(sid, key)
	e, ok := m.lookup(k)
	if !ok {
		return nil, ErrNotFound
	}
	e.expiresAt = m.now().Add(m.idleTTL)
	m.entries[k] = e
	return clone(e.data), nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, sid, key string, prev, next []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := storeKey(sid, key)
	var current []byte
	if e, ok := m.lookup(k); ok {
		current = e.data
	}
	if !sameValue(current, prev) {
		return ErrConflict
	}
	m.entries[k] = memoryEntry{data: clone(next), expiresAt: m.now().Add(m.idleTTL)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sid, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, storeKey(sid, key))
	return nil
}

// lookup drops the entry when it has expired. Callers hold m.mu.
func (m *MemoryStore) lookup(k string) (memoryEntry, bool) {
	e, ok := m.entries[k]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, k)
		return memoryEntry{}, false
	}
	return e, true
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
