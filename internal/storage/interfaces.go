// Package storage defines the persistence boundary for parsed events.
package storage

import (
	"context"

	"solana-defi-indexer/internal/domain"
)

// EventRepository persists transaction events. Implementations must be
// safe for concurrent use and must silently ignore rows that collide on
// an already-persisted signature, so replaying a stream is idempotent.
type EventRepository interface {
	// SaveEvent persists a single event.
	SaveEvent(ctx context.Context, event domain.TransactionEvent) error

	// SaveEvents persists events one at a time, stopping on first error.
	SaveEvents(ctx context.Context, events []domain.TransactionEvent) error

	// SaveEventsBatch persists events as a single atomic unit and
	// returns the number of rows actually inserted (duplicates are
	// skipped, not counted, and not an error).
	SaveEventsBatch(ctx context.Context, events []domain.TransactionEvent) (int, error)
}
