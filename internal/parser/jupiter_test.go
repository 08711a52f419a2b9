package parser

import (
	"testing"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
)

func TestJupiterParser_Route(t *testing.T) {
	parser := &JupiterParser{}

	keys := []string{"tokenProgram", "userAcc", "otherAcc", JupiterProgramID}
	data := append(append([]byte{}, jupiterRouteDisc...), 1, 2, 3)
	rec := testRecord(keys, []envelope.Instruction{
		{ProgramIDIndex: 3, Accounts: []int{0, 1, 2}, Data: data},
	})

	events := parser.Parse(rec)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev, ok := events[0].(domain.JupiterSwap)
	if !ok {
		t.Fatalf("expected JupiterSwap, got %T", events[0])
	}
	if ev.Signer != "userAcc" {
		t.Errorf("expected signer userAcc, got %s", ev.Signer)
	}
	if ev.AmmPool != "Jupiter Aggregator" {
		t.Errorf("expected Jupiter Aggregator pool label, got %s", ev.AmmPool)
	}
	if ev.MintIn != "unknown" || ev.MintOut != "unknown" {
		t.Errorf("expected unknown mints, got %s/%s", ev.MintIn, ev.MintOut)
	}
	if ev.AmountIn != 0 || ev.AmountOut != 0 {
		t.Errorf("expected zero amounts, got %d/%d", ev.AmountIn, ev.AmountOut)
	}
	if ev.Slot != testSlot || ev.Signature != testSignature {
		t.Errorf("unexpected slot/signature: %d %s", ev.Slot, ev.Signature)
	}
}

func TestJupiterParser_OtherDiscriminator(t *testing.T) {
	parser := &JupiterParser{}

	keys := []string{"tokenProgram", "userAcc", JupiterProgramID}
	rec := testRecord(keys, []envelope.Instruction{
		{ProgramIDIndex: 2, Accounts: []int{0, 1}, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	})

	if events := parser.Parse(rec); len(events) != 0 {
		t.Errorf("expected no events for unknown discriminator, got %d", len(events))
	}
}

func TestJupiterParser_ShortData(t *testing.T) {
	parser := &JupiterParser{}

	keys := []string{"userAcc", JupiterProgramID}
	rec := testRecord(keys, []envelope.Instruction{
		{ProgramIDIndex: 1, Accounts: []int{0}, Data: jupiterRouteDisc[:4]},
	})

	if events := parser.Parse(rec); len(events) != 0 {
		t.Errorf("expected no events for short data, got %d", len(events))
	}
}

func TestJupiterParser_ProgramAbsent(t *testing.T) {
	parser := &JupiterParser{}

	keys := []string{"tokenProgram", "userAcc", "someOtherProgram"}
	data := append([]byte{}, jupiterRouteDisc...)
	rec := testRecord(keys, []envelope.Instruction{
		{ProgramIDIndex: 2, Accounts: []int{0, 1}, Data: data},
	})

	if events := parser.Parse(rec); len(events) != 0 {
		t.Errorf("expected no events when program is absent, got %d", len(events))
	}
}
