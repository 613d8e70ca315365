package persistence

import "errors"

var (
	// ErrEntityNotFound is returned when an entity is not found in the repository.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoTransaction is returned by writes that must join the caller's transaction
	// when the context carries none.
	ErrNoTransaction = errors.New("operation requires an active transaction")
)
