package store

import (
	"context"
	"sync"

	"landledger/internal/accounts/models"
	"landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[domain.AccountID]*models.Account
	byWallet map[domain.Address]*models.Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[domain.AccountID]*models.Account),
		byWallet: make(map[domain.Address]*models.Account),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byWallet[account.WalletAddress]; ok {
		return sentinel.ErrDuplicate
	}
	cp := *account
	s.byID[account.ID] = &cp
	s.byWallet[account.WalletAddress] = &cp
	return nil
}

func (s *InMemoryStore) GetByID(ctx context.Context, id domain.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *InMemoryStore) GetByWallet(ctx context.Context, wallet domain.Address) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byWallet[wallet]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

var _ Store = (*InMemoryStore)(nil)
