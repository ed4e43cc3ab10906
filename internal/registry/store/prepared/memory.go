package prepared

import (
	"context"
	"sync"
	"time"

	"landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

type entry struct {
	reg       Registration
	expiresAt time.Time
}

// InMemoryStore is the test double for the redis-backed store, with the same
// TTL semantics enforced at read time.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.Hash]entry

	// Now is swappable so tests can cross the expiry boundary.
	Now func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[domain.Hash]entry),
		Now:     time.Now,
	}
}

func (s *InMemoryStore) Save(ctx context.Context, reg Registration, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[reg.PayloadHash] = entry{reg: reg, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, payloadHash domain.Hash) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[payloadHash]
	if !ok || s.Now().After(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	reg := e.reg
	return &reg, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, payloadHash domain.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, payloadHash)
	return nil
}

var _ Store = (*InMemoryStore)(nil)
