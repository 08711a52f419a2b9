// Package domain defines the core data model shared by the source,
// pipeline, parser, and storage layers.
package domain

// ChainEventKind discriminates the two update kinds a source can deliver.
type ChainEventKind int

const (
	// ChainEventTransaction carries a transaction record for parsing.
	ChainEventTransaction ChainEventKind = iota
	// ChainEventBlockMeta carries block metadata. Block metadata is
	// observed and logged by the pipeline but never parsed.
	ChainEventBlockMeta
)

// ChainEvent is a single update produced by a TransactionSource.
type ChainEvent struct {
	Kind ChainEventKind

	// Transaction is set when Kind is ChainEventTransaction.
	Transaction *TransactionRecord

	// Block metadata fields, set when Kind is ChainEventBlockMeta.
	Slot            uint64
	BlockHash       string
	ParentBlockHash string
}

// NewTransactionEvent wraps a transaction record in a ChainEvent.
func NewTransactionEvent(rec *TransactionRecord) *ChainEvent {
	return &ChainEvent{Kind: ChainEventTransaction, Transaction: rec}
}

// NewBlockMetaEvent builds a block-metadata ChainEvent.
func NewBlockMetaEvent(slot uint64, blockHash, parentBlockHash string) *ChainEvent {
	return &ChainEvent{
		Kind:            ChainEventBlockMeta,
		Slot:            slot,
		BlockHash:       blockHash,
		ParentBlockHash: parentBlockHash,
	}
}

// PayloadKind identifies how a transaction record carries its payload.
type PayloadKind int

const (
	// PayloadEnvelope is raw envelope bytes as delivered by a streaming
	// transport. Parsers decode it through the envelope decoder.
	PayloadEnvelope PayloadKind = iota
	// PayloadStructured is a pre-decoded transaction as delivered by a
	// polling transport.
	PayloadStructured
	// PayloadRaw is arbitrary raw bytes. Reserved; no parser consumes it.
	PayloadRaw
)

// TransactionRecord is one transaction as seen by the pipeline. The
// signature plus the payload fully determine parse output: parsers are
// pure functions of the record.
type TransactionRecord struct {
	Signature string // base58, stable identity
	Success   bool
	Slot      uint64 // ordering key within one source run
	BlockTime *int64 // unix seconds, optional

	Kind     PayloadKind
	Envelope []byte // set when Kind is PayloadEnvelope
	Raw      []byte // set when Kind is PayloadRaw

	// decoded caches the envelope decoder output so the account-key
	// table is built once and reused by every parser. The concrete type
	// is owned by the envelope package.
	decoded any
}

// CacheDecoded stores the decoded envelope for reuse across parsers.
func (r *TransactionRecord) CacheDecoded(v any) { r.decoded = v }

// CachedDecoded returns the previously cached decode result, or nil.
func (r *TransactionRecord) CachedDecoded() any { return r.decoded }
