package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to create a record with a
	// key that already exists. The transaction ledger is append-only and a
	// live holding key must never be created twice.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrencyConflict is returned when two writers raced on the same
	// holding key. Recoverable by resubmitting the whole operation against
	// fresh state, never by merging partial results.
	ErrConcurrencyConflict = errors.New("concurrent write conflict")
)
