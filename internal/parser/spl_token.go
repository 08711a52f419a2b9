package parser

import (
	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
)

// TokenProgramID is the SPL Token program.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// SPL Token instruction discriminators (single leading byte).
const (
	splTransfer        = 3
	splTransferChecked = 12
)

// SPLTokenParser decodes SPL Token Transfer and TransferChecked
// instructions into TokenTransfer events.
type SPLTokenParser struct{}

func (*SPLTokenParser) Name() string { return "spl_token" }

func (*SPLTokenParser) Parse(rec *domain.TransactionRecord) []domain.TransactionEvent {
	tx, err := envelope.Resolve(rec)
	if err != nil {
		return nil
	}

	pgmIdx := programIndex(tx.AccountKeys, TokenProgramID)
	if pgmIdx < 0 {
		return nil
	}

	var events []domain.TransactionEvent
	for _, ix := range tx.Instructions {
		if ix.ProgramIDIndex != pgmIdx || len(ix.Data) < 9 {
			continue
		}

		// amount is a little-endian u64 immediately after the opcode.
		amount := readUint64LE(ix.Data, 1)

		switch ix.Data[0] {
		case splTransfer:
			from, ok1 := accountAt(tx.AccountKeys, ix.Accounts, 0)
			to, ok2 := accountAt(tx.AccountKeys, ix.Accounts, 1)
			if !ok1 || !ok2 {
				continue
			}
			events = append(events, domain.TokenTransfer{
				From:      from,
				To:        to,
				Amount:    amount,
				Slot:      tx.Slot,
				Signature: tx.Signature,
			})

		case splTransferChecked:
			from, ok1 := accountAt(tx.AccountKeys, ix.Accounts, 0)
			mint, ok2 := accountAt(tx.AccountKeys, ix.Accounts, 1)
			to, ok3 := accountAt(tx.AccountKeys, ix.Accounts, 2)
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			events = append(events, domain.TokenTransfer{
				From:      from,
				To:        to,
				Mint:      mint,
				Amount:    amount,
				Slot:      tx.Slot,
				Signature: tx.Signature,
			})
		}
	}

	return events
}
