package domain

// EventKind identifies the concrete type of a TransactionEvent.
type EventKind string

const (
	EventTokenTransfer EventKind = "token_transfer"
	EventRaydiumSwap   EventKind = "raydium_swap"
	EventJupiterSwap   EventKind = "jupiter_swap"
	EventPumpFunSwap   EventKind = "pumpfun_swap"
)

// TransactionEvent is a structured event extracted from a transaction.
// Events are immutable value objects: created by a parser, owned by the
// persistence queue, then by the batch buffer until flushed.
//
// Each kind is keyed by its transaction signature for storage
// deduplication (one row per table per signature under
// ON-CONFLICT-ignore semantics).
type TransactionEvent interface {
	Kind() EventKind
	TxSignature() string
}

// TokenTransfer is an SPL Token Transfer or TransferChecked.
// Mint is empty for plain Transfer instructions, which do not carry it.
type TokenTransfer struct {
	From      string
	To        string
	Mint      string
	Amount    uint64
	Slot      uint64
	Signature string
}

func (TokenTransfer) Kind() EventKind       { return EventTokenTransfer }
func (e TokenTransfer) TxSignature() string { return e.Signature }

// RaydiumSwap is a Raydium AMM v4 SwapBaseIn. AmountReceived is recovered
// from the paired inner SPL transfer; 0 when no match was found. Mint
// fields are not resolved by the Raydium parser and hold "unknown".
type RaydiumSwap struct {
	AmmPool         string
	Signer          string
	AmountIn        uint64
	MinAmountOut    uint64
	AmountReceived  uint64
	MintSource      string
	MintDestination string
	Slot            uint64
	Signature       string
}

func (RaydiumSwap) Kind() EventKind       { return EventRaydiumSwap }
func (e RaydiumSwap) TxSignature() string { return e.Signature }

// JupiterSwap is a Jupiter v6 Route call. Only the signer is resolved;
// amounts, mints and fees are sentinel values until full route decoding
// lands.
type JupiterSwap struct {
	Signature      string
	Slot           uint64
	Signer         string
	AmmPool        string
	MintIn         string
	MintOut        string
	AmountIn       uint64
	AmountOut      uint64
	SlippageBps    uint16
	PlatformFeeBps uint16
	RoutePlan      []string
}

func (JupiterSwap) Kind() EventKind       { return EventJupiterSwap }
func (e JupiterSwap) TxSignature() string { return e.Signature }

// PumpFunSwap is a pump.fun bonding-curve Buy or Sell. SolAmount holds
// the instruction's max SOL cost (buy) or min SOL output (sell), not the
// realized trade amount.
type PumpFunSwap struct {
	Signature    string
	Slot         uint64
	Signer       string
	Mint         string
	IsBuy        bool
	SolAmount    uint64
	TokenAmount  uint64
	BondingCurve string
}

func (PumpFunSwap) Kind() EventKind       { return EventPumpFunSwap }
func (e PumpFunSwap) TxSignature() string { return e.Signature }
