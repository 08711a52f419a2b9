package parser

import (
	"bytes"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
)

// PumpFunProgramID is the pump.fun bonding-curve program.
const PumpFunProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// 8-byte Anchor discriminators for the bonding-curve instructions.
var (
	pumpFunBuyDisc  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	pumpFunSellDisc = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// Buy/Sell account layout:
// [global, fee_recipient, mint, bonding_curve, associated_bonding_curve,
// associated_user, user, ...]
const (
	pumpFunAccMint         = 2
	pumpFunAccBondingCurve = 3
	pumpFunAccUser         = 6
	pumpFunMinAccs         = 7
)

// PumpFunParser decodes pump.fun Buy and Sell instructions. SolAmount is
// the instruction's max SOL cost (buy) or min SOL output (sell), not the
// settled amount.
type PumpFunParser struct{}

func (*PumpFunParser) Name() string { return "pump_fun" }

func (*PumpFunParser) Parse(rec *domain.TransactionRecord) []domain.TransactionEvent {
	tx, err := envelope.Resolve(rec)
	if err != nil {
		return nil
	}

	pgmIdx := programIndex(tx.AccountKeys, PumpFunProgramID)
	if pgmIdx < 0 {
		return nil
	}

	var events []domain.TransactionEvent
	for _, ix := range tx.Instructions {
		if ix.ProgramIDIndex != pgmIdx || len(ix.Data) < 8 {
			continue
		}

		var isBuy bool
		switch {
		case bytes.Equal(ix.Data[:8], pumpFunBuyDisc):
			isBuy = true
		case bytes.Equal(ix.Data[:8], pumpFunSellDisc):
			isBuy = false
		default:
			continue
		}

		if len(ix.Accounts) < pumpFunMinAccs || len(ix.Data) < 24 {
			continue
		}

		tokenAmount := readUint64LE(ix.Data, 8)
		solAmount := readUint64LE(ix.Data, 16)

		mint, ok1 := accountAt(tx.AccountKeys, ix.Accounts, pumpFunAccMint)
		curve, ok2 := accountAt(tx.AccountKeys, ix.Accounts, pumpFunAccBondingCurve)
		signer, ok3 := accountAt(tx.AccountKeys, ix.Accounts, pumpFunAccUser)
		if !ok1 || !ok2 || !ok3 {
			continue
		}

		events = append(events, domain.PumpFunSwap{
			Signature:    tx.Signature,
			Slot:         tx.Slot,
			Signer:       signer,
			Mint:         mint,
			IsBuy:        isBuy,
			SolAmount:    solAmount,
			TokenAmount:  tokenAmount,
			BondingCurve: curve,
		})
	}

	return events
}
