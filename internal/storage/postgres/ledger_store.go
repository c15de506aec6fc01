package postgres

import (
	"context"
	"fmt"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL. The append and
// the holding mutation run in one database transaction, so either both land
// or neither does.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Commit appends t (assigning its ID) and applies m as one atomic unit.
// Returns ErrDuplicateKey when a concurrent writer created the same holding
// key first, ErrConcurrencyConflict on a serialization failure; both are
// retryable after re-reading state.
func (s *LedgerStore) Commit(ctx context.Context, t *domain.Transaction, m *storage.HoldingMutation) error {
	if t == nil || m == nil {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertTransaction(ctx, tx, t); err != nil {
		return err
	}

	switch m.Op {
	case storage.MutationCreate:
		err = insertHolding(ctx, tx, m.Holding)
	case storage.MutationUpdate:
		err = updateHolding(ctx, tx, m.Holding)
	case storage.MutationDelete:
		err = deleteHolding(ctx, tx, m.Key)
	default:
		return storage.ErrInvalidInput
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationError(err) {
			return storage.ErrConcurrencyConflict
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReplaceHoldings atomically swaps an account's holding set for the rebuilt
// one.
func (s *LedgerStore) ReplaceHoldings(ctx context.Context, accountID string, holdings []*domain.Holding) error {
	if accountID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM holdings WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	for _, h := range holdings {
		if err := insertHolding(ctx, tx, h); err != nil {
			return fmt.Errorf("insert holding %s: %w", h.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
