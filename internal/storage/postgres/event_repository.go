package postgres

import (
	"context"
	"fmt"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/storage"
)

// EventRepository implements storage.EventRepository using PostgreSQL.
// Each event kind is stored in its own table with a UNIQUE(signature)
// constraint; inserts use ON CONFLICT DO NOTHING so replayed signatures
// are skipped silently.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Compile-time interface check.
var _ storage.EventRepository = (*EventRepository)(nil)

const (
	insertTokenTransfer = `
		INSERT INTO token_transfers (signature, slot, from_address, to_address, amount, mint)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signature) DO NOTHING
	`
	insertRaydiumSwap = `
		INSERT INTO raydium_swaps (signature, slot, amm_pool, signer, amount_in, min_amount_out, amount_received, mint_source, mint_destination)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signature) DO NOTHING
	`
	insertJupiterSwap = `
		INSERT INTO jupiter_swaps (signature, slot, signer, amm_pool, mint_in, mint_out, amount_in, amount_out, slippage_bps, platform_fee_bps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (signature) DO NOTHING
	`
	insertPumpFunSwap = `
		INSERT INTO pumpfun_swaps (signature, slot, signer, mint, is_buy, sol_amount, token_amount, bonding_curve)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (signature) DO NOTHING
	`
)

// queryArgs maps an event to its insert statement and bind arguments.
// Unsigned amounts are stored as BIGINT, matching base-unit precision.
func queryArgs(event domain.TransactionEvent) (string, []any, error) {
	switch e := event.(type) {
	case domain.TokenTransfer:
		var mint *string
		if e.Mint != "" {
			mint = &e.Mint
		}
		return insertTokenTransfer, []any{
			e.Signature, int64(e.Slot), e.From, e.To, int64(e.Amount), mint,
		}, nil
	case domain.RaydiumSwap:
		return insertRaydiumSwap, []any{
			e.Signature, int64(e.Slot), e.AmmPool, e.Signer,
			int64(e.AmountIn), int64(e.MinAmountOut), int64(e.AmountReceived),
			e.MintSource, e.MintDestination,
		}, nil
	case domain.JupiterSwap:
		return insertJupiterSwap, []any{
			e.Signature, int64(e.Slot), e.Signer, e.AmmPool,
			e.MintIn, e.MintOut, int64(e.AmountIn), int64(e.AmountOut),
			int16(e.SlippageBps), int16(e.PlatformFeeBps),
		}, nil
	case domain.PumpFunSwap:
		return insertPumpFunSwap, []any{
			e.Signature, int64(e.Slot), e.Signer, e.Mint, e.IsBuy,
			int64(e.SolAmount), int64(e.TokenAmount), e.BondingCurve,
		}, nil
	default:
		return "", nil, fmt.Errorf("%w: %T", storage.ErrUnknownEventKind, event)
	}
}

// SaveEvent persists a single event. Signature collisions are silently
// skipped.
func (r *EventRepository) SaveEvent(ctx context.Context, event domain.TransactionEvent) error {
	query, args, err := queryArgs(event)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", event.Kind(), err)
	}
	return nil
}

// SaveEvents persists events one at a time, stopping on first error.
func (r *EventRepository) SaveEvents(ctx context.Context, events []domain.TransactionEvent) error {
	for _, event := range events {
		if err := r.SaveEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// SaveEventsBatch persists events inside one transaction and returns the
// number of rows actually inserted. Duplicates reduce the count but do
// not fail the batch.
func (r *EventRepository) SaveEventsBatch(ctx context.Context, events []domain.TransactionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, event := range events {
		query, args, err := queryArgs(event)
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert %s in batch: %w", event.Kind(), err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}
