package storage

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// MemoryDB is a KeyValue that lives only as long as the process. It is used
// when no storage directory is configured, and in tests.
type MemoryDB struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	keyTTL  time.Duration
	now     func() time.Time
}

// NewMemoryDB returns an empty MemoryDB. keyTTL applies to entries that don't
// carry their own TTL; zero means no expiry.
func NewMemoryDB(keyTTL time.Duration) *MemoryDB {
	return &MemoryDB{
		entries: make(map[string]memoryEntry),
		keyTTL:  keyTTL,
		now:     time.Now,
	}
}

// Put upserts an entry. Values are copied.
func (m *MemoryDB) Put(entry KVEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: append([]byte(nil), entry.Value...)}
	ttl := entry.TTL
	if ttl == 0 {
		ttl = m.keyTTL
	}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[string(entry.Key)] = e
	return nil
}

// Read returns a copy of an entry, or ErrNotFound if it's missing or expired
func (m *MemoryDB) Read(key []byte) (KVEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[string(key)]
	if !ok || m.expired(e) {
		return KVEntry{}, ErrNotFound
	}
	return KVEntry{
		Key:   key,
		Value: append([]byte(nil), e.value...),
	}, nil
}

// Delete removes an entry
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, string(key))
	return nil
}

// Cleanup drops expired entries
func (m *MemoryDB) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Close is no-op
func (m *MemoryDB) Close() error {
	return nil
}

func (m *MemoryDB) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}
