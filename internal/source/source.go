// Package source provides the transaction stream abstraction consumed by
// the pipeline, plus its transport adapters.
package source

import (
	"context"
	"encoding/json"
	"errors"

	"solana-defi-indexer/internal/domain"
)

// ErrInvalidSource marks a source as unrecoverable. The pipeline treats
// it as fatal and drains; every other error is retried.
var ErrInvalidSource = errors.New("invalid source")

// TransactionSource supplies chain events one at a time. A (nil, nil)
// return signals clean end-of-stream. Implementations are owned
// exclusively by the pipeline, which serializes all NextEvent calls.
type TransactionSource interface {
	NextEvent(ctx context.Context) (*domain.ChainEvent, error)
}

// envelopeProbe extracts the record header fields from raw envelope
// bytes without a full decode. The full account/instruction tables are
// decoded lazily by the parsers.
type envelopeProbe struct {
	Slot        uint64 `json:"slot"`
	Transaction *struct {
		Signatures []string `json:"signatures"`
	} `json:"transaction"`
	Meta *struct {
		Err json.RawMessage `json:"err"`
	} `json:"meta"`
}

// recordFromEnvelope builds a TransactionRecord around raw envelope
// bytes. Returns an error when the header fields cannot be extracted.
func recordFromEnvelope(raw []byte, blockTime *int64) (*domain.TransactionRecord, error) {
	var probe envelopeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Transaction == nil || len(probe.Transaction.Signatures) == 0 {
		return nil, errors.New("envelope missing signatures")
	}

	success := true
	if probe.Meta != nil && len(probe.Meta.Err) > 0 && string(probe.Meta.Err) != "null" {
		success = false
	}

	return &domain.TransactionRecord{
		Signature: probe.Transaction.Signatures[0],
		Success:   success,
		Slot:      probe.Slot,
		BlockTime: blockTime,
		Kind:      domain.PayloadEnvelope,
		Envelope:  raw,
	}, nil
}
