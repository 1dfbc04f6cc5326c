package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process ResultStore. Expired entries are dropped
// lazily on read and on each write.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	result    StoredResult
	expiresAt time.Time
}

// Compile-time interface check.
var _ ResultStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) PutResult(_ context.Context, result *StoredResult) error {
	prepare(result)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	s.entries[result.ID] = memoryEntry{result: *result, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, id string) (*StoredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return nil, nil
	}
	result := entry.result
	return &result, nil
}

// Len returns the number of unexpired entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}
