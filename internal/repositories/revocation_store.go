package repositories

import (
	"context"
	"sync"
	"time"
)

// RevocationStore remembers revoked refresh token IDs until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocationStore is an in-memory implementation of RevocationStore.
// Entries are process-local and lost on restart.
type MemoryRevocationStore struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryRevocationStore creates a new instance of MemoryRevocationStore.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks tokenID as revoked for ttl.
func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = now.Add(ttl)
	return nil
}

// IsRevoked reports whether tokenID is revoked and not yet expired.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return exp.After(s.now()), nil
}
