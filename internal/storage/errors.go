package storage

import "errors"

// Storage errors shared by all store implementations. The observation
// archive, report audit log and feature dataset are append-only:
// existing rows are never updated in place.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an
	// existing key. Re-extraction must never silently rewrite history.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
