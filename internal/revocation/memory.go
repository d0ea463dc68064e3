package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local blacklist for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithNow(time.Now)
}

func NewMemoryStoreWithNow(now func() time.Time) *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time), now: now}
}

func (s *MemoryStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
	s.entries[Key(token)] = now.Add(time.Duration(ttlSeconds(ttl)) * time.Second)
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.entries[Key(token)]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expiresAt) {
		delete(s.entries, Key(token))
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
