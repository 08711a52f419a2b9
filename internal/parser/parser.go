// Package parser extracts structured DeFi events from transaction
// records by decoding program-specific instruction payloads.
package parser

import (
	"encoding/binary"

	"solana-defi-indexer/internal/domain"
)

// TransactionParser decodes events for one on-chain program. Parse
// returns nil when the record yields no events for this parser; a parser
// never fails a transaction.
type TransactionParser interface {
	// Name identifies the parser for diagnostics.
	Name() string

	// Parse extracts zero or more events from the record.
	Parse(rec *domain.TransactionRecord) []domain.TransactionEvent
}

// Registry is an ordered collection of parsers applied to every
// transaction. Programs are mutually exclusive by program ID, so order
// does not affect correctness, but it fixes emission order.
type Registry struct {
	parsers []TransactionParser
}

// NewRegistry creates a registry with the given parsers in order.
func NewRegistry(parsers ...TransactionParser) *Registry {
	return &Registry{parsers: parsers}
}

// NewDefaultRegistry registers all supported protocol parsers.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		&SPLTokenParser{},
		&RaydiumAMMParser{},
		&JupiterParser{},
		&PumpFunParser{},
	)
}

// Register appends a parser. Later additions run after existing ones.
func (r *Registry) Register(p TransactionParser) {
	r.parsers = append(r.parsers, p)
}

// Parsers returns the registered parsers in registration order.
func (r *Registry) Parsers() []TransactionParser {
	return r.parsers
}

// ParseAll runs every parser against the record and concatenates the
// results in registration order.
func (r *Registry) ParseAll(rec *domain.TransactionRecord) []domain.TransactionEvent {
	var events []domain.TransactionEvent
	for _, p := range r.parsers {
		events = append(events, p.Parse(rec)...)
	}
	return events
}

// readUint64LE reads a little-endian uint64 from data at offset.
// Returns 0 when the slice is too short.
func readUint64LE(data []byte, offset int) uint64 {
	if offset < 0 || offset+8 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint64(data[offset:])
}

// programIndex returns the position of programID in the account-key
// table, or -1 when the program is not referenced by the transaction.
func programIndex(keys []string, programID string) int {
	for i, k := range keys {
		if k == programID {
			return i
		}
	}
	return -1
}

// accountAt maps an instruction account position to its base58 key.
// ok is false when the position is out of range of either table.
func accountAt(keys []string, accounts []int, pos int) (string, bool) {
	if pos >= len(accounts) {
		return "", false
	}
	idx := accounts[pos]
	if idx < 0 || idx >= len(keys) {
		return "", false
	}
	return keys[idx], true
}
