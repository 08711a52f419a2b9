package storage

import (
	"context"
	"errors"

	"solana-defi-indexer/internal/domain"
)

// MultiRepository fans every write out to several repositories, such as
// a primary store plus an analytics mirror. The first repository is
// authoritative for inserted-row counts; errors from all repositories
// are joined.
type MultiRepository struct {
	repos []EventRepository
}

var _ EventRepository = (*MultiRepository)(nil)

// NewMultiRepository combines repositories. At least one is required;
// with exactly one the repository is returned unwrapped.
func NewMultiRepository(repos ...EventRepository) EventRepository {
	if len(repos) == 1 {
		return repos[0]
	}
	return &MultiRepository{repos: repos}
}

func (m *MultiRepository) SaveEvent(ctx context.Context, event domain.TransactionEvent) error {
	var errs []error
	for _, r := range m.repos {
		if err := r.SaveEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiRepository) SaveEvents(ctx context.Context, events []domain.TransactionEvent) error {
	var errs []error
	for _, r := range m.repos {
		if err := r.SaveEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiRepository) SaveEventsBatch(ctx context.Context, events []domain.TransactionEvent) (int, error) {
	var saved int
	var errs []error
	for i, r := range m.repos {
		n, err := r.SaveEventsBatch(ctx, events)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			saved = n
		}
	}
	return saved, errors.Join(errs...)
}
