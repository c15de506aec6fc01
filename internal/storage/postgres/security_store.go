package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/storage"
)

// SecurityStore implements storage.SecurityStore using PostgreSQL.
type SecurityStore struct {
	pool *Pool
}

// NewSecurityStore creates a new SecurityStore.
func NewSecurityStore(pool *Pool) *SecurityStore {
	return &SecurityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SecurityStore = (*SecurityStore)(nil)

const securityColumns = ` id, symbol, name, instrument_type, currency `

// Insert adds a security. Returns ErrDuplicateKey if the ID exists.
func (s *SecurityStore) Insert(ctx context.Context, sec *domain.Security) error {
	if sec == nil || sec.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO securities (` + securityColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		sec.ID, sec.Symbol, sec.Name, sec.InstrumentType, sec.Currency,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert security: %w", err)
	}
	return nil
}

// GetByID retrieves a security. Returns ErrNotFound if not exists.
func (s *SecurityStore) GetByID(ctx context.Context, id string) (*domain.Security, error) {
	query := `SELECT` + securityColumns + `FROM securities WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	sec, err := scanSecurity(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get security by id: %w", err)
	}
	return sec, nil
}

// GetAll retrieves all securities ordered by ID.
func (s *SecurityStore) GetAll(ctx context.Context) ([]*domain.Security, error) {
	query := `SELECT` + securityColumns + `FROM securities ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all securities: %w", err)
	}
	defer rows.Close()

	var secs []*domain.Security
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security row: %w", err)
		}
		secs = append(secs, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security rows: %w", err)
	}
	return secs, nil
}

// scanSecurity scans a single row into a Security.
func scanSecurity(row pgx.Row) (*domain.Security, error) {
	var sec domain.Security

	err := row.Scan(&sec.ID, &sec.Symbol, &sec.Name, &sec.InstrumentType, &sec.Currency)
	if err != nil {
		return nil, err
	}

	return &sec, nil
}
