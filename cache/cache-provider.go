package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// Store is keyed, time-expiring storage of opaque values.
// An entry must never be observable after its expiration has passed;
// expiring lazily on read is enough.
//
// Implementations must be thread-safe!
// Operations on a single key are atomic, nothing is promised across keys.
type Store interface {
	// Contains reports whether a live entry exists for the key.
	Contains(ctx context.Context, key string) (bool, error)
	// Get returns the stored value for the key, if it exists.
	// The boolean is false when the entry is missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value under the key until the given instant.
	Set(ctx context.Context, key string, value []byte, expires time.Time) error
	// Remove deletes the entry for the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that keep expired entries around until read.
type Sweeper interface {
	// DeleteExpired removes all expired entries and returns how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}

type memoryEntry struct {
	expires time.Time
	value   []byte
}

// MemoryStore is an in-process Store backed by a map.
type MemoryStore struct {
	mutex *sync.RWMutex
	db    map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (m *MemoryStore) Contains(ctx context.Context, key string) (bool, error) {
	_, ok := m.lookup(key)
	return ok, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(entry.value), true, nil
}

// lookup returns a live entry, purging it if it has expired.
func (m *MemoryStore) lookup(key string) (memoryEntry, bool) {
	m.mutex.RLock()
	entry, ok := m.db[key]
	m.mutex.RUnlock()
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expires.After(m.now()) {
		return entry, true
	}
	m.mutex.Lock()
	// the entry may have been replaced in the meantime
	if current, ok := m.db[key]; ok && !current.expires.After(m.now()) {
		delete(m.db, key)
	}
	m.mutex.Unlock()
	return memoryEntry{}, false
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, expires time.Time) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = memoryEntry{expires, stored}
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := m.now()
	n := 0
	for key, entry := range m.db {
		if !entry.expires.After(now) {
			delete(m.db, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries held, expired ones included.
func (m *MemoryStore) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.db)
}
