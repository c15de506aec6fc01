package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// HoldingStore is an in-memory implementation of storage.HoldingStore.
type HoldingStore struct {
	mu   sync.RWMutex
	data map[domain.HoldingKey]*domain.Holding
}

// NewHoldingStore creates a new in-memory holding store.
func NewHoldingStore() *HoldingStore {
	return &HoldingStore{
		data: make(map[domain.HoldingKey]*domain.Holding),
	}
}

// Get retrieves the holding for a key. Returns ErrNotFound if absent.
func (s *HoldingStore) Get(_ context.Context, key domain.HoldingKey) (*domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return h.Clone(), nil
}

// GetByAccount retrieves all holdings for an account, ordered by key.
func (s *HoldingStore) GetByAccount(_ context.Context, accountID string) ([]*domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Holding
	for _, h := range s.data {
		if h.AccountID == accountID {
			result = append(result, h.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key().String() < result[j].Key().String()
	})
	return result, nil
}

// Insert creates a holding. Returns ErrDuplicateKey if the key is live.
func (s *HoldingStore) Insert(_ context.Context, h *domain.Holding) error {
	if h == nil || h.AccountID == "" || h.PlatformID == "" || h.SecurityID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[h.Key()]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[h.Key()] = h.Clone()
	return nil
}

// Update replaces an existing holding. Returns ErrNotFound if absent.
func (s *HoldingStore) Update(_ context.Context, h *domain.Holding) error {
	if h == nil || h.AccountID == "" || h.PlatformID == "" || h.SecurityID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[h.Key()]; !exists {
		return storage.ErrNotFound
	}
	s.data[h.Key()] = h.Clone()
	return nil
}

// Delete removes the holding for a key. Returns ErrNotFound if absent.
func (s *HoldingStore) Delete(_ context.Context, key domain.HoldingKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// DeleteByAccount removes all holdings for an account.
func (s *HoldingStore) DeleteByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, h := range s.data {
		if h.AccountID == accountID {
			delete(s.data, key)
		}
	}
	return nil
}

// UpdateMarketPrice sets the current price and recomputes the market value
// and unrealized gain fields. Returns ErrNotFound if the key is absent.
func (s *HoldingStore) UpdateMarketPrice(_ context.Context, key domain.HoldingKey, price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	h.SetMarketPrice(price)
	return nil
}

var _ storage.HoldingStore = (*HoldingStore)(nil)
