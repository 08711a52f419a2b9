// Package envelope decodes the outer transaction-update envelope into the
// positional tables parsers index into: account keys, top-level
// instructions, and inner instruction groups.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-defi-indexer/internal/domain"
)

// ErrMalformedEnvelope is returned when the outer envelope structure
// cannot be decoded or a transaction update lacks its nested
// transaction/message fields.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// ErrUnsupportedPayload is returned for record payload kinds no decoder
// exists for (the reserved raw-bytes variant).
var ErrUnsupportedPayload = errors.New("unsupported payload kind")

// Instruction is one decoded instruction. Accounts holds positions into
// the transaction's account-key table, Data the raw instruction bytes.
type Instruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           []byte
}

// InnerGroup is the set of inner (CPI) instructions invoked by the
// top-level instruction at Index.
type InnerGroup struct {
	Index        int
	Instructions []Instruction
}

// Transaction is the decoder output shared by all parsers.
//
// AccountKeys is ordered: static message keys, then lookup-table-resolved
// writable addresses, then resolved read-only addresses. Instructions
// index into this table positionally, so the order is load-bearing.
type Transaction struct {
	Slot         uint64
	Signature    string
	AccountKeys  []string
	Instructions []Instruction
	Inner        []InnerGroup
}

// wire structures mirror the JSON transaction notification shape.

type wireEnvelope struct {
	Slot        uint64           `json:"slot"`
	Transaction *wireTransaction `json:"transaction"`
	Meta        *wireMeta        `json:"meta"`
}

type wireTransaction struct {
	Signatures []string     `json:"signatures"`
	Message    *wireMessage `json:"message"`
}

type wireMessage struct {
	AccountKeys  []string          `json:"accountKeys"`
	Instructions []wireInstruction `json:"instructions"`
}

type wireInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"` // base58
}

type wireMeta struct {
	InnerInstructions []wireInnerGroup    `json:"innerInstructions"`
	LoadedAddresses   wireLoadedAddresses `json:"loadedAddresses"`
}

type wireInnerGroup struct {
	Index        int               `json:"index"`
	Instructions []wireInstruction `json:"instructions"`
}

type wireLoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// Decode parses raw envelope bytes into a Transaction.
func Decode(raw []byte) (*Transaction, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Transaction == nil || env.Transaction.Message == nil {
		return nil, fmt.Errorf("%w: missing transaction or message", ErrMalformedEnvelope)
	}
	if len(env.Transaction.Signatures) == 0 {
		return nil, fmt.Errorf("%w: missing signatures", ErrMalformedEnvelope)
	}

	msg := env.Transaction.Message

	// Static keys first, then resolved writable, then resolved readonly.
	keys := make([]string, 0, len(msg.AccountKeys))
	keys = append(keys, msg.AccountKeys...)
	if env.Meta != nil {
		keys = append(keys, env.Meta.LoadedAddresses.Writable...)
		keys = append(keys, env.Meta.LoadedAddresses.Readonly...)
	}

	tx := &Transaction{
		Slot:         env.Slot,
		Signature:    env.Transaction.Signatures[0],
		AccountKeys:  keys,
		Instructions: decodeInstructions(msg.Instructions),
	}

	if env.Meta != nil {
		for _, group := range env.Meta.InnerInstructions {
			tx.Inner = append(tx.Inner, InnerGroup{
				Index:        group.Index,
				Instructions: decodeInstructions(group.Instructions),
			})
		}
	}

	return tx, nil
}

// decodeInstructions converts wire instructions, base58-decoding data.
// Undecodable data is kept empty rather than failing the envelope;
// parsers skip such instructions via their length guards.
func decodeInstructions(wire []wireInstruction) []Instruction {
	if len(wire) == 0 {
		return nil
	}
	out := make([]Instruction, 0, len(wire))
	for _, ix := range wire {
		data, err := base58.Decode(ix.Data)
		if err != nil {
			data = nil
		}
		out = append(out, Instruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			Accounts:       ix.Accounts,
			Data:           data,
		})
	}
	return out
}

// InnerGroupFor returns the inner-instruction group whose parent is the
// top-level instruction at parentIndex, or nil if none was reported.
func (t *Transaction) InnerGroupFor(parentIndex int) *InnerGroup {
	for i := range t.Inner {
		if t.Inner[i].Index == parentIndex {
			return &t.Inner[i]
		}
	}
	return nil
}

// Resolve returns the decoded envelope for a record, decoding at most
// once per record. The decode result is cached on the record so the
// account-key table is built once and reused by every parser.
func Resolve(rec *domain.TransactionRecord) (*Transaction, error) {
	if cached := rec.CachedDecoded(); cached != nil {
		if tx, ok := cached.(*Transaction); ok {
			return tx, nil
		}
	}

	switch rec.Kind {
	case domain.PayloadEnvelope:
		tx, err := Decode(rec.Envelope)
		if err != nil {
			return nil, err
		}
		rec.CacheDecoded(tx)
		return tx, nil
	case domain.PayloadStructured:
		// Structured records are built through NewStructuredRecord and
		// always carry their decode in the cache.
		return nil, fmt.Errorf("%w: structured record without transaction", ErrMalformedEnvelope)
	default:
		return nil, ErrUnsupportedPayload
	}
}

// NewStructuredRecord builds a record from an already-decoded
// transaction, as delivered by a polling transport.
func NewStructuredRecord(tx *Transaction, success bool, blockTime *int64) *domain.TransactionRecord {
	rec := &domain.TransactionRecord{
		Signature: tx.Signature,
		Success:   success,
		Slot:      tx.Slot,
		BlockTime: blockTime,
		Kind:      domain.PayloadStructured,
	}
	rec.CacheDecoded(tx)
	return rec
}
