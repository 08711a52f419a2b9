package parser

import (
	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
)

// RaydiumAMMProgramID is the Raydium AMM v4 program.
const RaydiumAMMProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// raydiumSwapBaseIn is the SwapBaseIn opcode.
const raydiumSwapBaseIn = 9

// SwapBaseIn account layout positions.
const (
	raydiumAccPool   = 1
	raydiumAccDest   = 16
	raydiumAccSigner = 17
	raydiumMinAccs   = 18
)

// RaydiumAMMParser decodes Raydium AMM v4 SwapBaseIn instructions.
//
// The top-level instruction only carries amount_in/min_amount_out; the
// amount actually received is recovered from the swap's inner SPL
// transfer into the user destination account. Mints are not resolved
// here (the AMM accounts are vaults, not mints).
type RaydiumAMMParser struct{}

func (*RaydiumAMMParser) Name() string { return "raydium_amm" }

func (*RaydiumAMMParser) Parse(rec *domain.TransactionRecord) []domain.TransactionEvent {
	tx, err := envelope.Resolve(rec)
	if err != nil {
		return nil
	}

	pgmIdx := programIndex(tx.AccountKeys, RaydiumAMMProgramID)
	if pgmIdx < 0 {
		return nil
	}

	var events []domain.TransactionEvent
	for ixIdx, ix := range tx.Instructions {
		if ix.ProgramIDIndex != pgmIdx {
			continue
		}
		if len(ix.Data) < 17 || ix.Data[0] != raydiumSwapBaseIn {
			continue
		}
		if len(ix.Accounts) < raydiumMinAccs {
			continue
		}

		// Fixed two-field record after the opcode.
		amountIn := readUint64LE(ix.Data, 1)
		minAmountOut := readUint64LE(ix.Data, 9)

		pool, ok1 := accountAt(tx.AccountKeys, ix.Accounts, raydiumAccPool)
		signer, ok2 := accountAt(tx.AccountKeys, ix.Accounts, raydiumAccSigner)
		if !ok1 || !ok2 {
			continue
		}

		destAccIdx := ix.Accounts[raydiumAccDest]
		received := findInnerTransferAmount(tx, ixIdx, destAccIdx)

		events = append(events, domain.RaydiumSwap{
			AmmPool:         pool,
			Signer:          signer,
			AmountIn:        amountIn,
			MinAmountOut:    minAmountOut,
			AmountReceived:  received,
			MintSource:      "unknown",
			MintDestination: "unknown",
			Slot:            tx.Slot,
			Signature:       tx.Signature,
		})
	}

	return events
}

// findInnerTransferAmount scans the inner-instruction group of the swap
// for an SPL Transfer or TransferChecked whose destination account-table
// index equals destAccIdx, returning its amount. Returns 0 when no inner
// transfer matches.
func findInnerTransferAmount(tx *envelope.Transaction, parentIdx, destAccIdx int) uint64 {
	group := tx.InnerGroupFor(parentIdx)
	if group == nil {
		return 0
	}

	for _, inner := range group.Instructions {
		if len(inner.Data) < 9 {
			continue
		}

		var destPos int
		switch inner.Data[0] {
		case splTransfer:
			destPos = 1
		case splTransferChecked:
			destPos = 2
		default:
			continue
		}

		if destPos >= len(inner.Accounts) {
			continue
		}
		if inner.Accounts[destPos] == destAccIdx {
			return readUint64LE(inner.Data, 1)
		}
	}

	return 0
}
