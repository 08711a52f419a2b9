// Package memory implements the event repository in process memory.
// It backs tests and repository-less development runs.
package memory

import (
	"context"
	"sync"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/storage"
)

// eventKey mirrors the per-table UNIQUE(signature) constraint: one row
// per event kind per signature.
type eventKey struct {
	kind      domain.EventKind
	signature string
}

// EventRepository stores events in memory with the same idempotency
// semantics as the SQL repositories.
type EventRepository struct {
	mu     sync.Mutex
	events map[eventKey]domain.TransactionEvent
	order  []eventKey
}

// NewEventRepository creates an empty in-memory repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[eventKey]domain.TransactionEvent)}
}

// Compile-time interface check.
var _ storage.EventRepository = (*EventRepository)(nil)

// SaveEvent stores one event. Duplicate signatures are ignored.
func (r *EventRepository) SaveEvent(_ context.Context, event domain.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.save(event)
	return nil
}

// SaveEvents stores events one at a time.
func (r *EventRepository) SaveEvents(_ context.Context, events []domain.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range events {
		r.save(event)
	}
	return nil
}

// SaveEventsBatch stores events as one unit and returns the number
// actually inserted (duplicates skipped).
func (r *EventRepository) SaveEventsBatch(_ context.Context, events []domain.TransactionEvent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, event := range events {
		if r.save(event) {
			inserted++
		}
	}
	return inserted, nil
}

// save inserts under the lock; reports whether a new row was created.
func (r *EventRepository) save(event domain.TransactionEvent) bool {
	key := eventKey{kind: event.Kind(), signature: event.TxSignature()}
	if _, exists := r.events[key]; exists {
		return false
	}
	r.events[key] = event
	r.order = append(r.order, key)
	return true
}

// All returns the stored events in insertion order.
func (r *EventRepository) All() []domain.TransactionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TransactionEvent, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.events[key])
	}
	return out
}

// Len returns the number of stored events.
func (r *EventRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
