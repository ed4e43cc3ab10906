package property

import (
	"context"
	"sort"
	"sync"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

// InMemoryStore mirrors the postgres store's uniqueness and conditional-update
// semantics for tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.PropertyRecord

	// FailNextUpdate, when set, makes the next UpdateIfStatus return the
	// error. Used to exercise the chain-ok/ledger-fail consistency path.
	FailNextUpdate error
	// FailNextCreate does the same for Create and CreateIfAbsent.
	FailNextCreate error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.PropertyRecord)}
}

func clone(r *models.PropertyRecord) *models.PropertyRecord {
	cp := *r
	cp.DocumentHashes = append([]string(nil), r.DocumentHashes...)
	return &cp
}

func (s *InMemoryStore) conflicts(record *models.PropertyRecord) bool {
	for _, existing := range s.records {
		if existing.PropertyID == record.PropertyID {
			return true
		}
		if !record.AssetID.IsZero() && existing.AssetID == record.AssetID {
			return true
		}
		if existing.MintTxHash == record.MintTxHash {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) Create(ctx context.Context, record *models.PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailNextCreate; err != nil {
		s.FailNextCreate = nil
		return err
	}
	if s.conflicts(record) {
		return sentinel.ErrDuplicate
	}
	s.records[record.PropertyID] = clone(record)
	return nil
}

func (s *InMemoryStore) CreateIfAbsent(ctx context.Context, record *models.PropertyRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailNextCreate; err != nil {
		s.FailNextCreate = nil
		return false, err
	}
	for _, existing := range s.records {
		if existing.MintTxHash == record.MintTxHash {
			return false, nil
		}
	}
	if s.conflicts(record) {
		return false, sentinel.ErrDuplicate
	}
	s.records[record.PropertyID] = clone(record)
	return true, nil
}

func (s *InMemoryStore) GetByPropertyID(ctx context.Context, propertyID string) (*models.PropertyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(record), nil
}

func (s *InMemoryStore) GetByAssetID(ctx context.Context, assetID domain.AssetID) (*models.PropertyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.AssetID == assetID {
			return clone(record), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ExistsByPropertyID(ctx context.Context, propertyID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[propertyID]
	return ok, nil
}

func (s *InMemoryStore) UpdateIfStatus(ctx context.Context, record *models.PropertyRecord, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailNextUpdate; err != nil {
		s.FailNextUpdate = nil
		return err
	}
	stored, ok := s.records[record.PropertyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != expected {
		return sentinel.ErrStaleStatus
	}
	s.records[record.PropertyID] = clone(record)
	return nil
}

func (s *InMemoryStore) List(ctx context.Context, status *models.Status) ([]*models.PropertyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PropertyRecord
	for _, record := range s.records {
		if status != nil && record.Status != *status {
			continue
		}
		out = append(out, clone(record))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListByOwner(ctx context.Context, owner domain.Address) ([]*models.PropertyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PropertyRecord
	for _, record := range s.records {
		if record.OwnerWallet.Equal(owner) {
			out = append(out, clone(record))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(records []*models.PropertyRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].PropertyID > records[j].PropertyID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

var _ Store = (*InMemoryStore)(nil)
