package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// HoldingStore implements storage.HoldingStore using PostgreSQL.
type HoldingStore struct {
	pool *Pool
}

// NewHoldingStore creates a new HoldingStore.
func NewHoldingStore(pool *Pool) *HoldingStore {
	return &HoldingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HoldingStore = (*HoldingStore)(nil)

const holdingColumns = `
	account_id, platform_id, security_id,
	quantity, average_cost, total_cost, currency,
	current_price, current_value, unrealized_gain, unrealized_gain_pct,
	last_updated
`

// execer is satisfied by both *Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertHolding creates a holding row. Returns ErrDuplicateKey on conflict.
func insertHolding(ctx context.Context, db execer, h *domain.Holding) error {
	if h == nil || h.AccountID == "" || h.PlatformID == "" || h.SecurityID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO holdings (` + holdingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := db.Exec(ctx, query,
		h.AccountID, h.PlatformID, h.SecurityID,
		h.Quantity, h.AverageCost, h.TotalCost, h.Currency,
		h.CurrentPrice, h.CurrentValue, h.UnrealizedGain, h.UnrealizedGainPct,
		h.LastUpdated,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert holding: %w", err)
	}
	return nil
}

// updateHolding replaces a holding row. Returns ErrNotFound if absent.
func updateHolding(ctx context.Context, db execer, h *domain.Holding) error {
	if h == nil || h.AccountID == "" || h.PlatformID == "" || h.SecurityID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE holdings SET
			quantity = $4, average_cost = $5, total_cost = $6, currency = $7,
			current_price = $8, current_value = $9,
			unrealized_gain = $10, unrealized_gain_pct = $11,
			last_updated = $12
		WHERE account_id = $1 AND platform_id = $2 AND security_id = $3
	`

	tag, err := db.Exec(ctx, query,
		h.AccountID, h.PlatformID, h.SecurityID,
		h.Quantity, h.AverageCost, h.TotalCost, h.Currency,
		h.CurrentPrice, h.CurrentValue, h.UnrealizedGain, h.UnrealizedGainPct,
		h.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("update holding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// deleteHolding removes a holding row. Returns ErrNotFound if absent.
func deleteHolding(ctx context.Context, db execer, key domain.HoldingKey) error {
	query := `
		DELETE FROM holdings
		WHERE account_id = $1 AND platform_id = $2 AND security_id = $3
	`

	tag, err := db.Exec(ctx, query, key.AccountID, key.PlatformID, key.SecurityID)
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Get retrieves the holding for a key. Returns ErrNotFound if absent.
func (s *HoldingStore) Get(ctx context.Context, key domain.HoldingKey) (*domain.Holding, error) {
	query := `
		SELECT` + holdingColumns + `
		FROM holdings
		WHERE account_id = $1 AND platform_id = $2 AND security_id = $3
	`

	row := s.pool.QueryRow(ctx, query, key.AccountID, key.PlatformID, key.SecurityID)
	h, err := scanHolding(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holding: %w", err)
	}
	return h, nil
}

// GetByAccount retrieves all holdings for an account, ordered by key.
func (s *HoldingStore) GetByAccount(ctx context.Context, accountID string) ([]*domain.Holding, error) {
	query := `
		SELECT` + holdingColumns + `
		FROM holdings
		WHERE account_id = $1
		ORDER BY account_id ASC, platform_id ASC, security_id ASC
	`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("get holdings by account: %w", err)
	}
	defer rows.Close()

	return scanHoldings(rows)
}

// Insert creates a holding. Returns ErrDuplicateKey if the key is live.
func (s *HoldingStore) Insert(ctx context.Context, h *domain.Holding) error {
	return insertHolding(ctx, s.pool, h)
}

// Update replaces an existing holding. Returns ErrNotFound if absent.
func (s *HoldingStore) Update(ctx context.Context, h *domain.Holding) error {
	return updateHolding(ctx, s.pool, h)
}

// Delete removes the holding for a key. Returns ErrNotFound if absent.
func (s *HoldingStore) Delete(ctx context.Context, key domain.HoldingKey) error {
	return deleteHolding(ctx, s.pool, key)
}

// DeleteByAccount removes all holdings for an account.
func (s *HoldingStore) DeleteByAccount(ctx context.Context, accountID string) error {
	query := `DELETE FROM holdings WHERE account_id = $1`

	if _, err := s.pool.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("delete holdings by account: %w", err)
	}
	return nil
}

// UpdateMarketPrice sets the current price and recomputes the market value
// and unrealized gain columns in one statement. The gain percentage stays
// NULL for zero-cost positions.
func (s *HoldingStore) UpdateMarketPrice(ctx context.Context, key domain.HoldingKey, price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE holdings SET
			current_price = ROUND($4::numeric, 8),
			current_value = ROUND(quantity * $4::numeric, 4),
			unrealized_gain = ROUND(quantity * $4::numeric, 4) - total_cost,
			unrealized_gain_pct = CASE
				WHEN total_cost > 0 THEN
					ROUND((ROUND(quantity * $4::numeric, 4) - total_cost) / total_cost * 100, 2)
				ELSE NULL
			END
		WHERE account_id = $1 AND platform_id = $2 AND security_id = $3
	`

	tag, err := s.pool.Exec(ctx, query, key.AccountID, key.PlatformID, key.SecurityID, price)
	if err != nil {
		return fmt.Errorf("update market price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanHolding scans a single row into a Holding.
func scanHolding(row pgx.Row) (*domain.Holding, error) {
	var h domain.Holding

	err := row.Scan(
		&h.AccountID, &h.PlatformID, &h.SecurityID,
		&h.Quantity, &h.AverageCost, &h.TotalCost, &h.Currency,
		&h.CurrentPrice, &h.CurrentValue, &h.UnrealizedGain, &h.UnrealizedGainPct,
		&h.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	return &h, nil
}

// scanHoldings scans multiple rows into a slice of Holding.
func scanHoldings(rows pgx.Rows) ([]*domain.Holding, error) {
	var hs []*domain.Holding

	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holding row: %w", err)
		}
		hs = append(hs, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holding rows: %w", err)
	}

	return hs, nil
}
