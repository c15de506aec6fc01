package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// PlatformStore implements storage.PlatformStore using PostgreSQL.
type PlatformStore struct {
	pool *Pool
}

// NewPlatformStore creates a new PlatformStore.
func NewPlatformStore(pool *Pool) *PlatformStore {
	return &PlatformStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PlatformStore = (*PlatformStore)(nil)

const platformColumns = `
	id, name, account_type, currency,
	trading_fee_fixed, trading_fee_pct, fx_fee_pct, stamp_duty_applicable
`

// Insert adds a platform. Returns ErrDuplicateKey if the ID exists.
func (s *PlatformStore) Insert(ctx context.Context, p *domain.Platform) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO platforms (` + platformColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, p.AccountType, p.Currency,
		p.TradingFeeFixed, p.TradingFeePct, p.FXFeePct, p.StampDutyApplicable,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert platform: %w", err)
	}
	return nil
}

// GetByID retrieves a platform. Returns ErrNotFound if not exists.
func (s *PlatformStore) GetByID(ctx context.Context, id string) (*domain.Platform, error) {
	query := `SELECT` + platformColumns + `FROM platforms WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPlatform(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get platform by id: %w", err)
	}
	return p, nil
}

// GetAll retrieves all platforms ordered by ID.
func (s *PlatformStore) GetAll(ctx context.Context) ([]*domain.Platform, error) {
	query := `SELECT` + platformColumns + `FROM platforms ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all platforms: %w", err)
	}
	defer rows.Close()

	var ps []*domain.Platform
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, fmt.Errorf("scan platform row: %w", err)
		}
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate platform rows: %w", err)
	}
	return ps, nil
}

// scanPlatform scans a single row into a Platform.
func scanPlatform(row pgx.Row) (*domain.Platform, error) {
	var p domain.Platform

	err := row.Scan(
		&p.ID, &p.Name, &p.AccountType, &p.Currency,
		&p.TradingFeeFixed, &p.TradingFeePct, &p.FXFeePct, &p.StampDutyApplicable,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
