package memory

import (
	"context"
	"sort"
	"sync"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// SecurityStore is an in-memory implementation of storage.SecurityStore.
type SecurityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Security
}

// NewSecurityStore creates a new in-memory security store.
func NewSecurityStore() *SecurityStore {
	return &SecurityStore{
		data: make(map[string]*domain.Security),
	}
}

// Insert adds a security. Returns ErrDuplicateKey if the ID exists.
func (s *SecurityStore) Insert(_ context.Context, sec *domain.Security) error {
	if sec == nil || sec.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sec.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *sec
	s.data[sec.ID] = &copy
	return nil
}

// GetByID retrieves a security. Returns ErrNotFound if not exists.
func (s *SecurityStore) GetByID(_ context.Context, id string) (*domain.Security, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *sec
	return &copy, nil
}

// GetAll retrieves all securities ordered by ID.
func (s *SecurityStore) GetAll(_ context.Context) ([]*domain.Security, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Security, 0, len(s.data))
	for _, sec := range s.data {
		copy := *sec
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ storage.SecurityStore = (*SecurityStore)(nil)
