package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
)

// TransactionStore provides access to the append-only transaction ledger.
// Records are never updated or deleted.
type TransactionStore interface {
	// Insert appends a transaction and assigns its ID (insertion sequence).
	Insert(ctx context.Context, t *domain.Transaction) error

	// InsertBulk appends multiple transactions atomically, assigning IDs in
	// slice order. Fails the entire batch on any invalid record.
	InsertBulk(ctx context.Context, ts []*domain.Transaction) error

	// GetByID retrieves a transaction. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)

	// GetByAccount retrieves an account's full history ordered by
	// (trade_date ASC, id ASC). The secondary key is load-bearing:
	// weighted-average cost is path-dependent, so replay order must be stable.
	GetByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error)

	// GetByHoldingKey retrieves the history for one holding key in the same
	// order as GetByAccount.
	GetByHoldingKey(ctx context.Context, key domain.HoldingKey) ([]*domain.Transaction, error)
}

// HoldingStore provides access to derived position records. Only the
// incremental engine and the batch reconciler may write cost-basis fields;
// UpdateMarketPrice is the external price collaborator's path.
type HoldingStore interface {
	// Get retrieves the holding for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key domain.HoldingKey) (*domain.Holding, error)

	// GetByAccount retrieves all holdings for an account, ordered by key.
	GetByAccount(ctx context.Context, accountID string) ([]*domain.Holding, error)

	// Insert creates a holding. Returns ErrDuplicateKey if the key is live:
	// a second concurrent create must fail loudly, never duplicate.
	Insert(ctx context.Context, h *domain.Holding) error

	// Update replaces an existing holding. Returns ErrNotFound if absent.
	Update(ctx context.Context, h *domain.Holding) error

	// Delete removes the holding for a key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key domain.HoldingKey) error

	// DeleteByAccount removes all holdings for an account.
	DeleteByAccount(ctx context.Context, accountID string) error

	// UpdateMarketPrice sets the current price and recomputes market value
	// and unrealized gain fields. Stale prices violate no engine invariant.
	UpdateMarketPrice(ctx context.Context, key domain.HoldingKey, price decimal.Decimal) error
}

// MutationOp classifies a holding mutation committed with a transaction.
type MutationOp int

// Holding mutation operations.
const (
	MutationCreate MutationOp = iota + 1
	MutationUpdate
	MutationDelete
)

// HoldingMutation describes the holding change that must commit atomically
// with its transaction. Holding is nil for MutationDelete.
type HoldingMutation struct {
	Op      MutationOp
	Key     domain.HoldingKey
	Holding *domain.Holding
}

// LedgerStore couples the transaction append with its holding mutation.
// Either both commit or neither does; a transaction is never partially
// applied.
type LedgerStore interface {
	// Commit appends t (assigning its ID) and applies m as one atomic unit.
	Commit(ctx context.Context, t *domain.Transaction, m *HoldingMutation) error

	// ReplaceHoldings atomically swaps an account's holding set for the
	// rebuilt one. Used by the batch reconciler only.
	ReplaceHoldings(ctx context.Context, accountID string, holdings []*domain.Holding) error
}

// PlatformStore provides access to platform reference data and fee schedules.
// Read-only from the engine's perspective.
type PlatformStore interface {
	// Insert adds a platform. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, p *domain.Platform) error

	// GetByID retrieves a platform. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Platform, error)

	// GetAll retrieves all platforms ordered by ID.
	GetAll(ctx context.Context) ([]*domain.Platform, error)
}

// SecurityStore provides access to security reference data.
type SecurityStore interface {
	// Insert adds a security. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, s *domain.Security) error

	// GetByID retrieves a security. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Security, error)

	// GetAll retrieves all securities ordered by ID.
	GetAll(ctx context.Context) ([]*domain.Security, error)
}
