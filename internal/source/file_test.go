package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"solana-defi-indexer/internal/domain"
)

func writeReplayFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write replay file: %v", err)
	}
	return path
}

func TestFileSource_Replay(t *testing.T) {
	path := writeReplayFile(t,
		`{"slot":5,"transaction":{"signatures":["sigA"],"message":{"accountKeys":[],"instructions":[]}}}`,
		`not json at all`,
		``,
		`{"slot":6,"transaction":{"signatures":["sigB"],"message":{"accountKeys":[],"instructions":[]}},"meta":{"err":{"InstructionError":[0,1]}}}`,
	)

	src, err := NewFileSource(path, nil)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	defer src.Close()

	ctx := context.Background()

	ev, err := src.NextEvent(ctx)
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	if ev.Kind != domain.ChainEventTransaction || ev.Transaction.Signature != "sigA" {
		t.Errorf("unexpected first event: %+v", ev)
	}
	if !ev.Transaction.Success {
		t.Error("expected first transaction to be successful")
	}

	// The garbage and blank lines are skipped.
	ev, err = src.NextEvent(ctx)
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	if ev.Transaction.Signature != "sigB" {
		t.Errorf("expected sigB, got %s", ev.Transaction.Signature)
	}
	if ev.Transaction.Success {
		t.Error("expected failed transaction for non-null meta.err")
	}

	// End of stream.
	ev, err = src.NextEvent(ctx)
	if err != nil {
		t.Fatalf("NextEvent at EOF: %v", err)
	}
	if ev != nil {
		t.Errorf("expected (nil, nil) at end of stream, got %+v", ev)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.jsonl"), nil)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestRecordFromEnvelope_MissingSignatures(t *testing.T) {
	_, err := recordFromEnvelope([]byte(`{"slot":1,"transaction":{"signatures":[]}}`), nil)
	if err == nil {
		t.Error("expected an error for an envelope without signatures")
	}
}
