package parser

import (
	"encoding/binary"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
)

const (
	testSignature = "5KtP3qCgnEXAMPLEsigEXAMPLEsigEXAMPLEsigEXAMPLE"
	testSlot      = 250_000_000
)

// testRecord builds a structured transaction record for parser tests.
func testRecord(keys []string, ixs []envelope.Instruction, inner ...envelope.InnerGroup) *domain.TransactionRecord {
	tx := &envelope.Transaction{
		Slot:         testSlot,
		Signature:    testSignature,
		AccountKeys:  keys,
		Instructions: ixs,
		Inner:        inner,
	}
	return envelope.NewStructuredRecord(tx, true, nil)
}

// u64le appends a little-endian uint64 to data.
func u64le(data []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(data, v)
}
