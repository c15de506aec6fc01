package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
// The id column is a BIGSERIAL; insertion order is the replay tiebreaker.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `
	id, account_id, platform_id, security_id,
	type, trade_date,
	quantity, price_per_unit, currency, fx_rate,
	trading_fee, stamp_duty, fx_fee,
	gross_amount, net_amount,
	notes, created_at
`

const insertTransactionQuery = `
	INSERT INTO transactions (
		account_id, platform_id, security_id,
		type, trade_date,
		quantity, price_per_unit, currency, fx_rate,
		trading_fee, stamp_duty, fx_fee,
		gross_amount, net_amount,
		notes, created_at
	) VALUES (
		$1, $2, $3,
		$4, $5,
		$6, $7, $8, $9,
		$10, $11, $12,
		$13, $14,
		$15, $16
	)
	RETURNING id
`

// queryRower is satisfied by both *Pool and pgx.Tx, so the ledger store can
// append inside its own transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// insertTransaction appends t and writes the assigned id back into it.
func insertTransaction(ctx context.Context, db queryRower, t *domain.Transaction) error {
	if t == nil || t.AccountID == "" {
		return storage.ErrInvalidInput
	}

	err := db.QueryRow(ctx, insertTransactionQuery,
		t.AccountID, t.PlatformID, t.SecurityID,
		t.Type, t.TradeDate,
		t.Quantity, t.PricePerUnit, t.Currency, t.FXRate,
		t.TradingFee, t.StampDuty, t.FXFee,
		t.GrossAmount, t.NetAmount,
		t.Notes, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Insert appends a transaction and assigns its ID.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.Transaction) error {
	return insertTransaction(ctx, s.pool, t)
}

// InsertBulk appends multiple transactions atomically, assigning IDs in slice
// order. Fails the entire batch on any invalid record.
func (s *TransactionStore) InsertBulk(ctx context.Context, ts []*domain.Transaction) error {
	if len(ts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range ts {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT` + transactionColumns + `FROM transactions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// GetByAccount retrieves an account's full history ordered by
// (trade_date ASC, id ASC).
func (s *TransactionStore) GetByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	query := `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY trade_date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("get transactions by account: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByHoldingKey retrieves the history for one holding key in replay order.
func (s *TransactionStore) GetByHoldingKey(ctx context.Context, key domain.HoldingKey) ([]*domain.Transaction, error) {
	query := `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND platform_id = $2 AND security_id = $3
		ORDER BY trade_date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, key.AccountID, key.PlatformID, key.SecurityID)
	if err != nil {
		return nil, fmt.Errorf("get transactions by holding key: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction

	err := row.Scan(
		&t.ID, &t.AccountID, &t.PlatformID, &t.SecurityID,
		&t.Type, &t.TradeDate,
		&t.Quantity, &t.PricePerUnit, &t.Currency, &t.FXRate,
		&t.TradingFee, &t.StampDuty, &t.FXFee,
		&t.GrossAmount, &t.NetAmount,
		&t.Notes, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var ts []*domain.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		ts = append(ts, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return ts, nil
}
