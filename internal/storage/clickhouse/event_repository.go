package clickhouse

import (
	"context"
	"fmt"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/storage"
)

// EventRepository implements storage.EventRepository on ClickHouse.
// Tables are ReplacingMergeTree keyed by signature: duplicate rows are
// collapsed at merge time, so appending a replayed signature is safe and
// counts as inserted here.
type EventRepository struct {
	conn *Conn
}

// NewEventRepository creates a new ClickHouse-backed repository.
func NewEventRepository(conn *Conn) *EventRepository {
	return &EventRepository{conn: conn}
}

// Compile-time interface check.
var _ storage.EventRepository = (*EventRepository)(nil)

// SaveEvent persists a single event.
func (r *EventRepository) SaveEvent(ctx context.Context, event domain.TransactionEvent) error {
	_, err := r.SaveEventsBatch(ctx, []domain.TransactionEvent{event})
	return err
}

// SaveEvents persists events one batch per call.
func (r *EventRepository) SaveEvents(ctx context.Context, events []domain.TransactionEvent) error {
	_, err := r.SaveEventsBatch(ctx, events)
	return err
}

// SaveEventsBatch groups events by kind and appends one columnar batch
// per table.
func (r *EventRepository) SaveEventsBatch(ctx context.Context, events []domain.TransactionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	var (
		transfers []domain.TokenTransfer
		raydium   []domain.RaydiumSwap
		jupiter   []domain.JupiterSwap
		pumpfun   []domain.PumpFunSwap
	)
	for _, event := range events {
		switch e := event.(type) {
		case domain.TokenTransfer:
			transfers = append(transfers, e)
		case domain.RaydiumSwap:
			raydium = append(raydium, e)
		case domain.JupiterSwap:
			jupiter = append(jupiter, e)
		case domain.PumpFunSwap:
			pumpfun = append(pumpfun, e)
		default:
			return 0, fmt.Errorf("%w: %T", storage.ErrUnknownEventKind, event)
		}
	}

	if err := r.appendTransfers(ctx, transfers); err != nil {
		return 0, err
	}
	if err := r.appendRaydium(ctx, raydium); err != nil {
		return 0, err
	}
	if err := r.appendJupiter(ctx, jupiter); err != nil {
		return 0, err
	}
	if err := r.appendPumpFun(ctx, pumpfun); err != nil {
		return 0, err
	}

	return len(events), nil
}

func (r *EventRepository) appendTransfers(ctx context.Context, events []domain.TokenTransfer) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO token_transfers")
	if err != nil {
		return fmt.Errorf("prepare token_transfers batch: %w", err)
	}
	for _, e := range events {
		if err := batch.Append(e.Signature, e.Slot, e.From, e.To, e.Amount, e.Mint); err != nil {
			return fmt.Errorf("append token transfer: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send token_transfers batch: %w", err)
	}
	return nil
}

func (r *EventRepository) appendRaydium(ctx context.Context, events []domain.RaydiumSwap) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO raydium_swaps")
	if err != nil {
		return fmt.Errorf("prepare raydium_swaps batch: %w", err)
	}
	for _, e := range events {
		err := batch.Append(e.Signature, e.Slot, e.AmmPool, e.Signer,
			e.AmountIn, e.MinAmountOut, e.AmountReceived,
			e.MintSource, e.MintDestination)
		if err != nil {
			return fmt.Errorf("append raydium swap: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send raydium_swaps batch: %w", err)
	}
	return nil
}

func (r *EventRepository) appendJupiter(ctx context.Context, events []domain.JupiterSwap) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO jupiter_swaps")
	if err != nil {
		return fmt.Errorf("prepare jupiter_swaps batch: %w", err)
	}
	for _, e := range events {
		err := batch.Append(e.Signature, e.Slot, e.Signer, e.AmmPool,
			e.MintIn, e.MintOut, e.AmountIn, e.AmountOut,
			e.SlippageBps, e.PlatformFeeBps)
		if err != nil {
			return fmt.Errorf("append jupiter swap: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send jupiter_swaps batch: %w", err)
	}
	return nil
}

func (r *EventRepository) appendPumpFun(ctx context.Context, events []domain.PumpFunSwap) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO pumpfun_swaps")
	if err != nil {
		return fmt.Errorf("prepare pumpfun_swaps batch: %w", err)
	}
	for _, e := range events {
		err := batch.Append(e.Signature, e.Slot, e.Signer, e.Mint,
			e.IsBuy, e.SolAmount, e.TokenAmount, e.BondingCurve)
		if err != nil {
			return fmt.Errorf("append pumpfun swap: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send pumpfun_swaps batch: %w", err)
	}
	return nil
}
