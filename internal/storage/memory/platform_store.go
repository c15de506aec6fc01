package memory

import (
	"context"
	"sort"
	"sync"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// PlatformStore is an in-memory implementation of storage.PlatformStore.
type PlatformStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Platform
}

// NewPlatformStore creates a new in-memory platform store.
func NewPlatformStore() *PlatformStore {
	return &PlatformStore{
		data: make(map[string]*domain.Platform),
	}
}

// Insert adds a platform. Returns ErrDuplicateKey if the ID exists.
func (s *PlatformStore) Insert(_ context.Context, p *domain.Platform) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.ID] = &copy
	return nil
}

// GetByID retrieves a platform. Returns ErrNotFound if not exists.
func (s *PlatformStore) GetByID(_ context.Context, id string) (*domain.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// GetAll retrieves all platforms ordered by ID.
func (s *PlatformStore) GetAll(_ context.Context) ([]*domain.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Platform, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ storage.PlatformStore = (*PlatformStore)(nil)
