package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides on a unique
	// key in a context where the collision is not silently ignored.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrUnknownEventKind is returned for event kinds the repository
	// has no table for.
	ErrUnknownEventKind = errors.New("unknown event kind")
)
