package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
	"solana-defi-indexer/internal/parser"
	"solana-defi-indexer/internal/source"
	"solana-defi-indexer/internal/source/stub"
	"solana-defi-indexer/internal/storage/memory"
)

// transferRecord builds a record holding one SPL Token transfer.
func transferRecord(sig string, amount uint64) *domain.TransactionRecord {
	data := append([]byte{3}, binary.LittleEndian.AppendUint64(nil, amount)...)
	tx := &envelope.Transaction{
		Slot:        100,
		Signature:   sig,
		AccountKeys: []string{"srcAcc", "dstAcc", "owner", parser.TokenProgramID},
		Instructions: []envelope.Instruction{
			{ProgramIDIndex: 3, Accounts: []int{0, 1, 2}, Data: data},
		},
	}
	return envelope.NewStructuredRecord(tx, true, nil)
}

// raydiumRecord builds a SwapBaseIn with a matching inner transfer.
func raydiumRecord(sig string, amountIn, received uint64) *domain.TransactionRecord {
	keys := make([]string, 0, 19)
	accounts := make([]int, 18)
	for i := 0; i < 18; i++ {
		keys = append(keys, fmt.Sprintf("acc%d", i))
		accounts[i] = i
	}
	keys = append(keys, parser.RaydiumAMMProgramID)

	data := []byte{9}
	data = binary.LittleEndian.AppendUint64(data, amountIn)
	data = binary.LittleEndian.AppendUint64(data, amountIn-100_000)

	inner := envelope.Instruction{
		ProgramIDIndex: 18,
		Accounts:       []int{5, 16, 17},
		Data:           append([]byte{3}, binary.LittleEndian.AppendUint64(nil, received)...),
	}

	tx := &envelope.Transaction{
		Slot:        101,
		Signature:   sig,
		AccountKeys: keys,
		Instructions: []envelope.Instruction{
			{ProgramIDIndex: 18, Accounts: accounts, Data: data},
		},
		Inner: []envelope.InnerGroup{{Index: 0, Instructions: []envelope.Instruction{inner}}},
	}
	return envelope.NewStructuredRecord(tx, true, nil)
}

// unrelatedRecord builds a record no parser matches.
func unrelatedRecord(sig string) *domain.TransactionRecord {
	tx := &envelope.Transaction{
		Slot:        102,
		Signature:   sig,
		AccountKeys: []string{"accA", "someOtherProgram"},
		Instructions: []envelope.Instruction{
			{ProgramIDIndex: 1, Accounts: []int{0}, Data: []byte{1, 2, 3}},
		},
	}
	return envelope.NewStructuredRecord(tx, true, nil)
}

// recordingRepo captures flush batch sizes; optionally blocks flushes
// until released, signalling each entry on started.
type recordingRepo struct {
	mu      sync.Mutex
	batches []int
	total   int
	release chan struct{} // nil: never block
	started chan struct{} // nil: no entry signal
}

func (r *recordingRepo) SaveEvent(ctx context.Context, ev domain.TransactionEvent) error {
	_, err := r.SaveEventsBatch(ctx, []domain.TransactionEvent{ev})
	return err
}

func (r *recordingRepo) SaveEvents(ctx context.Context, evs []domain.TransactionEvent) error {
	_, err := r.SaveEventsBatch(ctx, evs)
	return err
}

func (r *recordingRepo) SaveEventsBatch(_ context.Context, evs []domain.TransactionEvent) (int, error) {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, len(evs))
	r.total += len(evs)
	return len(evs), nil
}

func (r *recordingRepo) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.batches...)
}

func (r *recordingRepo) saved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// failingRepo fails every flush.
type failingRepo struct{ calls int }

func (r *failingRepo) SaveEvent(context.Context, domain.TransactionEvent) error { return errors.New("down") }
func (r *failingRepo) SaveEvents(context.Context, []domain.TransactionEvent) error {
	return errors.New("down")
}
func (r *failingRepo) SaveEventsBatch(context.Context, []domain.TransactionEvent) (int, error) {
	r.calls++
	return 0, errors.New("down")
}

func TestPipeline_EndToEnd(t *testing.T) {
	// Three transactions: a token transfer, a Raydium swap with a paired
	// inner transfer, and one no parser matches. Two events come out.
	src := stub.Transactions(
		transferRecord("sig-transfer", 5000),
		raydiumRecord("sig-swap", 1_050_000, 950_000),
		unrelatedRecord("sig-other"),
	)
	repo := memory.NewEventRepository()

	p := New(Options{Source: src, Repository: repo})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if p.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", p.State())
	}

	events := repo.All()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	var swap *domain.RaydiumSwap
	for _, ev := range events {
		if s, ok := ev.(domain.RaydiumSwap); ok {
			swap = &s
		}
	}
	if swap == nil {
		t.Fatal("expected a raydium swap event")
	}
	if swap.AmountReceived != 950_000 {
		t.Errorf("expected amount received 950000, got %d", swap.AmountReceived)
	}
}

func TestPipeline_BatchSizeFlush(t *testing.T) {
	recs := make([]*domain.TransactionRecord, 4)
	for i := range recs {
		recs[i] = transferRecord(fmt.Sprintf("sig%d", i), uint64(i+1))
	}
	repo := &recordingRepo{}

	p := New(Options{
		Source:        stub.Transactions(recs...),
		Repository:    repo,
		BatchSize:     2,
		FlushInterval: time.Minute, // batch size drives the flushes
	})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sizes := repo.batchSizes()
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 2 {
		t.Errorf("expected two flushes of size 2, got %v", sizes)
	}
}

func TestPipeline_TimerFlush(t *testing.T) {
	// The source delivers three events and then hangs, so only the
	// ticker can trigger a flush.
	hang := &hangingSource{
		recs: []*domain.TransactionRecord{
			transferRecord("sig0", 1),
			transferRecord("sig1", 2),
			transferRecord("sig2", 3),
		},
	}
	repo := &recordingRepo{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(Options{
		Source:        hang,
		Repository:    repo,
		BatchSize:     50,
		FlushInterval: 20 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for repo.saved() < 3 {
		select {
		case <-deadline:
			t.Fatal("timer flush did not happen")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPipeline_Backpressure(t *testing.T) {
	// Park the consumer inside its first flush, then overfeed the queue.
	// With capacity 2 exactly three events survive: the one in flight
	// plus the two queued; everything after that is dropped.
	const total = 13

	feed := make(chan *domain.ChainEvent)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	repo := &recordingRepo{release: release, started: started}

	p := New(Options{
		Source:        &feedSource{ch: feed},
		Repository:    repo,
		QueueCapacity: 2,
		BatchSize:     1,
		FlushInterval: time.Minute,
	})

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	feed <- domain.NewTransactionEvent(transferRecord("sig0", 1))
	<-started // consumer is now blocked flushing sig0

	for i := 1; i < total; i++ {
		feed <- domain.NewTransactionEvent(transferRecord(fmt.Sprintf("sig%d", i), uint64(i+1)))
	}
	close(feed)

	// Only release the flush once the reader is done, so no queue slot
	// frees up while events are still arriving.
	deadline := time.After(2 * time.Second)
	for p.State() != StateDraining {
		select {
		case <-deadline:
			t.Fatal("pipeline never started draining")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	saved := repo.saved()
	dropped := int(p.Dropped())
	if saved != 3 {
		t.Errorf("expected exactly 3 retained events, got %d", saved)
	}
	if dropped != total-3 {
		t.Errorf("expected exactly %d drops, got %d", total-3, dropped)
	}
}

func TestPipeline_FatalSourceError(t *testing.T) {
	fatal := fmt.Errorf("%w: handshake rejected", source.ErrInvalidSource)
	src := stub.New(
		stub.Step{Event: domain.NewTransactionEvent(transferRecord("sig0", 1))},
		stub.Step{Err: fatal},
	)
	repo := memory.NewEventRepository()

	p := New(Options{Source: src, Repository: repo})
	err := p.Run(context.Background())
	if !errors.Is(err, source.ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}

	if p.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", p.State())
	}
	// The event read before the fault still gets flushed by the drain.
	if repo.Len() != 1 {
		t.Errorf("expected 1 event flushed during drain, got %d", repo.Len())
	}
}

func TestPipeline_TransientErrorRetries(t *testing.T) {
	src := stub.New(
		stub.Step{Err: errors.New("connection reset")},
		stub.Step{Event: domain.NewTransactionEvent(transferRecord("sig0", 1))},
	)
	repo := memory.NewEventRepository()

	p := New(Options{Source: src, Repository: repo, RetryDelay: time.Millisecond})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if repo.Len() != 1 {
		t.Errorf("expected the event after the transient error, got %d", repo.Len())
	}
}

func TestPipeline_BlockMetaIgnored(t *testing.T) {
	src := stub.New(
		stub.Step{Event: domain.NewBlockMetaEvent(500, "hashA", "hashB")},
		stub.Step{Event: domain.NewTransactionEvent(transferRecord("sig0", 1))},
	)
	repo := memory.NewEventRepository()

	p := New(Options{Source: src, Repository: repo})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if repo.Len() != 1 {
		t.Errorf("expected only the transaction event, got %d", repo.Len())
	}
}

func TestPipeline_MalformedEnvelopeSkipped(t *testing.T) {
	bad := &domain.TransactionRecord{
		Signature: "sig-bad",
		Kind:      domain.PayloadEnvelope,
		Envelope:  []byte("{broken"),
	}
	src := stub.Transactions(bad, transferRecord("sig0", 1))
	repo := memory.NewEventRepository()

	p := New(Options{Source: src, Repository: repo})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if repo.Len() != 1 {
		t.Errorf("expected the malformed record to be skipped, got %d events", repo.Len())
	}
}

func TestPipeline_NilRepository(t *testing.T) {
	src := stub.Transactions(transferRecord("sig0", 1), transferRecord("sig1", 2))

	p := New(Options{Source: src})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if p.Dropped() != 2 {
		t.Errorf("expected 2 fast-dropped events, got %d", p.Dropped())
	}
	if p.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", p.State())
	}
}

func TestPipeline_FlushFailureDoesNotStop(t *testing.T) {
	src := stub.Transactions(transferRecord("sig0", 1), transferRecord("sig1", 2))
	repo := &failingRepo{}

	p := New(Options{Source: src, Repository: repo, BatchSize: 1})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run should survive flush failures: %v", err)
	}
	if repo.calls == 0 {
		t.Error("expected flush attempts")
	}
}

func TestPipeline_RunTwice(t *testing.T) {
	p := New(Options{Source: stub.New()})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

// feedSource delivers whatever the test pushes on ch; closing ch ends
// the stream.
type feedSource struct{ ch chan *domain.ChainEvent }

func (s *feedSource) NextEvent(ctx context.Context) (*domain.ChainEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.ch:
		if !ok {
			return nil, nil
		}
		return ev, nil
	}
}

// hangingSource delivers its records and then blocks until the context
// is cancelled.
type hangingSource struct {
	recs []*domain.TransactionRecord
	pos  int
}

func (s *hangingSource) NextEvent(ctx context.Context) (*domain.ChainEvent, error) {
	if s.pos < len(s.recs) {
		rec := s.recs[s.pos]
		s.pos++
		return domain.NewTransactionEvent(rec), nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}
