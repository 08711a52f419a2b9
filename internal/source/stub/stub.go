// Package stub provides an in-memory TransactionSource for tests.
package stub

import (
	"context"

	"solana-defi-indexer/internal/domain"
)

// Step is one scripted NextEvent result.
type Step struct {
	Event *domain.ChainEvent
	Err   error
}

// Source replays a fixed script of events and errors, then reports end
// of stream. Implements source.TransactionSource.
type Source struct {
	steps []Step
	pos   int
}

// New creates a stub source from the given script.
func New(steps ...Step) *Source {
	return &Source{steps: steps}
}

// Transactions creates a stub source yielding the given records in order.
func Transactions(recs ...*domain.TransactionRecord) *Source {
	steps := make([]Step, 0, len(recs))
	for _, rec := range recs {
		steps = append(steps, Step{Event: domain.NewTransactionEvent(rec)})
	}
	return New(steps...)
}

// NextEvent returns the next scripted step, or (nil, nil) once the
// script is exhausted.
func (s *Source) NextEvent(ctx context.Context) (*domain.ChainEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.steps) {
		return nil, nil
	}
	step := s.steps[s.pos]
	s.pos++
	return step.Event, step.Err
}
