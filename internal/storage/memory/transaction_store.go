package memory

import (
	"context"
	"sort"
	"sync"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
// IDs are assigned from a monotonic counter, matching insertion order.
type TransactionStore struct {
	mu     sync.RWMutex
	data   []*domain.Transaction
	byID   map[int64]*domain.Transaction
	nextID int64
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byID:   make(map[int64]*domain.Transaction),
		nextID: 1,
	}
}

// Insert appends a transaction and assigns its ID.
func (s *TransactionStore) Insert(_ context.Context, t *domain.Transaction) error {
	if t == nil || t.AccountID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(t)
	return nil
}

// InsertBulk appends multiple transactions atomically, assigning IDs in slice
// order. Fails the entire batch on any invalid record.
func (s *TransactionStore) InsertBulk(_ context.Context, ts []*domain.Transaction) error {
	if len(ts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ts {
		if t == nil || t.AccountID == "" {
			return storage.ErrInvalidInput
		}
	}
	for _, t := range ts {
		s.insertLocked(t)
	}
	return nil
}

// insertLocked assigns the next ID, stores a copy and writes the assigned ID
// back to the caller's record. Caller must hold the write lock.
func (s *TransactionStore) insertLocked(t *domain.Transaction) {
	t.ID = s.nextID
	s.nextID++

	copy := *t
	s.data = append(s.data, &copy)
	s.byID[copy.ID] = &copy
}

// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(_ context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetByAccount retrieves an account's full history ordered by
// (trade_date ASC, id ASC).
func (s *TransactionStore) GetByAccount(_ context.Context, accountID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if t.AccountID == accountID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortReplayOrder(result)
	return result, nil
}

// GetByHoldingKey retrieves the history for one holding key, ordered by
// (trade_date ASC, id ASC).
func (s *TransactionStore) GetByHoldingKey(_ context.Context, key domain.HoldingKey) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if t.Key() == key {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortReplayOrder(result)
	return result, nil
}

func sortReplayOrder(ts []*domain.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].TradeDate.Equal(ts[j].TradeDate) {
			return ts[i].TradeDate.Before(ts[j].TradeDate)
		}
		return ts[i].ID < ts[j].ID
	})
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
