package memory

import (
	"context"
	"fmt"
	"sync"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore. It
// couples a TransactionStore and a HoldingStore under one commit mutex so a
// transaction append and its holding mutation land together or not at all.
type LedgerStore struct {
	mu           sync.Mutex
	transactions *TransactionStore
	holdings     *HoldingStore
}

// NewLedgerStore creates a ledger store over the given component stores.
func NewLedgerStore(transactions *TransactionStore, holdings *HoldingStore) *LedgerStore {
	return &LedgerStore{
		transactions: transactions,
		holdings:     holdings,
	}
}

// Commit appends t (assigning its ID) and applies m as one atomic unit.
// The mutation is pre-checked before the append so a failing mutation never
// leaves an orphaned transaction behind.
func (s *LedgerStore) Commit(ctx context.Context, t *domain.Transaction, m *storage.HoldingMutation) error {
	if t == nil || m == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Op {
	case storage.MutationCreate:
		if m.Holding == nil {
			return storage.ErrInvalidInput
		}
		if _, err := s.holdings.Get(ctx, m.Key); err == nil {
			return storage.ErrDuplicateKey
		}
	case storage.MutationUpdate:
		if m.Holding == nil {
			return storage.ErrInvalidInput
		}
		if _, err := s.holdings.Get(ctx, m.Key); err != nil {
			return err
		}
	case storage.MutationDelete:
		if _, err := s.holdings.Get(ctx, m.Key); err != nil {
			return err
		}
	default:
		return storage.ErrInvalidInput
	}

	if err := s.transactions.Insert(ctx, t); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	var err error
	switch m.Op {
	case storage.MutationCreate:
		err = s.holdings.Insert(ctx, m.Holding)
	case storage.MutationUpdate:
		err = s.holdings.Update(ctx, m.Holding)
	case storage.MutationDelete:
		err = s.holdings.Delete(ctx, m.Key)
	}
	if err != nil {
		return fmt.Errorf("apply holding mutation: %w", err)
	}
	return nil
}

// ReplaceHoldings atomically swaps an account's holding set for the rebuilt
// one.
func (s *LedgerStore) ReplaceHoldings(ctx context.Context, accountID string, holdings []*domain.Holding) error {
	if accountID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.holdings.DeleteByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	for _, h := range holdings {
		if err := s.holdings.Insert(ctx, h); err != nil {
			return fmt.Errorf("insert holding %s: %w", h.Key(), err)
		}
	}
	return nil
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
