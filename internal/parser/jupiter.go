package parser

import (
	"bytes"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
)

// JupiterProgramID is the Jupiter v6 aggregator program.
const JupiterProgramID = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"

// jupiterRouteDisc is the 8-byte discriminator of the Route instruction.
var jupiterRouteDisc = []byte{229, 23, 203, 151, 122, 227, 173, 42}

// JupiterParser detects Jupiter Route calls. Route plans nest per-AMM
// swap legs that this version does not decode: amounts, mints and fees
// are emitted as sentinel zero/unknown values and only the signer is
// resolved.
type JupiterParser struct{}

func (*JupiterParser) Name() string { return "jupiter" }

func (*JupiterParser) Parse(rec *domain.TransactionRecord) []domain.TransactionEvent {
	tx, err := envelope.Resolve(rec)
	if err != nil {
		return nil
	}

	pgmIdx := programIndex(tx.AccountKeys, JupiterProgramID)
	if pgmIdx < 0 {
		return nil
	}

	var events []domain.TransactionEvent
	for _, ix := range tx.Instructions {
		if ix.ProgramIDIndex != pgmIdx || len(ix.Data) < 8 {
			continue
		}
		if !bytes.Equal(ix.Data[:8], jupiterRouteDisc) {
			continue
		}

		signer, ok := accountAt(tx.AccountKeys, ix.Accounts, 1)
		if !ok {
			continue
		}

		events = append(events, domain.JupiterSwap{
			Signature: tx.Signature,
			Slot:      tx.Slot,
			Signer:    signer,
			AmmPool:   "Jupiter Aggregator",
			MintIn:    "unknown",
			MintOut:   "unknown",
		})
	}

	return events
}
