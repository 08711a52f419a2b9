// Package pipeline wires a transaction source, the parser registry, and
// an event repository into a continuously running ingestion loop with a
// bounded persistence queue.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-defi-indexer/internal/domain"
	"solana-defi-indexer/internal/envelope"
	"solana-defi-indexer/internal/observability"
	"solana-defi-indexer/internal/parser"
	"solana-defi-indexer/internal/source"
	"solana-defi-indexer/internal/storage"
)

// State describes the pipeline lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned by Run when the pipeline has already
// been run. A Pipeline is single-use.
var ErrAlreadyStarted = errors.New("pipeline already started")

// Options contains configuration for creating a Pipeline.
type Options struct {
	Source     source.TransactionSource
	Parsers    *parser.Registry        // Default: all supported protocol parsers
	Repository storage.EventRepository // May be nil: events are counted and discarded

	QueueCapacity int           // Default: 1000 events
	BatchSize     int           // Default: 50 events per flush
	FlushInterval time.Duration // Default: 500ms
	RetryDelay    time.Duration // Default: 100ms between retries on transient source errors

	Logger  *log.Logger
	Metrics *observability.Metrics
}

// Pipeline reads chain events from a single source, fans transactions
// out to every registered parser, and hands parsed events to a
// background persistence task over a bounded queue. When the queue is
// full events are dropped rather than blocking the read loop.
type Pipeline struct {
	source  source.TransactionSource
	parsers *parser.Registry
	repo    storage.EventRepository

	queueCapacity int
	batchSize     int
	flushInterval time.Duration
	retryDelay    time.Duration

	logger  *log.Logger
	metrics *observability.Metrics

	sourceMu sync.Mutex // serializes NextEvent: at most one in-flight read
	state    atomic.Int32
	dropped  atomic.Uint64
	queue    chan domain.TransactionEvent
}

// New creates a pipeline. Zero-value options get defaults.
func New(opts Options) *Pipeline {
	parsers := opts.Parsers
	if parsers == nil {
		parsers = parser.NewDefaultRegistry()
	}

	queueCapacity := opts.QueueCapacity
	if queueCapacity == 0 {
		queueCapacity = 1000
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 50
	}

	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = 500 * time.Millisecond
	}

	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = 100 * time.Millisecond
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}

	return &Pipeline{
		source:        opts.Source,
		parsers:       parsers,
		repo:          opts.Repository,
		queueCapacity: queueCapacity,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryDelay:    retryDelay,
		logger:        logger,
		metrics:       metrics,
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Dropped returns the number of events discarded because the queue was
// full or no repository was configured.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Run reads the source until it is exhausted, fails fatally, or ctx is
// cancelled, then drains the persistence queue before returning. It
// returns the fatal source error if one occurred, nil otherwise.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	p.queue = make(chan domain.TransactionEvent, p.queueCapacity)

	persistDone := make(chan struct{})
	if p.repo != nil {
		go func() {
			defer close(persistDone)
			p.runPersistence()
		}()
	} else {
		close(persistDone)
		p.logger.Println("no repository configured, parsed events will be discarded")
	}

	runErr := p.readLoop(ctx)

	// Drain: stop accepting events and let the persistence task flush
	// whatever is still queued.
	p.state.Store(int32(StateDraining))
	close(p.queue)
	<-persistDone
	p.state.Store(int32(StateStopped))

	if p.Dropped() > 0 {
		p.logger.Printf("pipeline stopped, %d events dropped", p.Dropped())
	}
	return runErr
}

// readLoop pulls chain events until exhaustion, fatal fault, or
// cancellation. Cancellation is treated like exhaustion so the drain
// still runs.
func (p *Pipeline) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			p.logger.Println("context cancelled, draining")
			return nil
		}

		ev, err := p.nextEvent(ctx)
		if err != nil {
			if errors.Is(err, source.ErrInvalidSource) {
				p.metrics.SourceErrors.WithLabelValues("fatal").Inc()
				p.logger.Printf("fatal source error, draining: %v", err)
				return err
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.logger.Println("context cancelled, draining")
				return nil
			}
			p.metrics.SourceErrors.WithLabelValues("transient").Inc()
			p.logger.Printf("transient source error, retrying in %v: %v", p.retryDelay, err)
			select {
			case <-ctx.Done():
			case <-time.After(p.retryDelay):
			}
			continue
		}
		if ev == nil {
			p.logger.Println("source exhausted, draining")
			return nil
		}

		switch ev.Kind {
		case domain.ChainEventBlockMeta:
			p.metrics.BlockMetaReceived.Inc()
			p.logger.Printf("block meta: slot=%d hash=%s", ev.Slot, ev.BlockHash)
		case domain.ChainEventTransaction:
			p.metrics.TransactionsReceived.Inc()
			p.handleTransaction(ev.Transaction)
		}
	}
}

// nextEvent serializes source access. Sources are not required to be
// safe for concurrent reads.
func (p *Pipeline) nextEvent(ctx context.Context) (*domain.ChainEvent, error) {
	p.sourceMu.Lock()
	defer p.sourceMu.Unlock()
	return p.source.NextEvent(ctx)
}

// handleTransaction decodes the record once and fans it out to every
// parser in registration order. Decode failures skip the transaction,
// they never stop the pipeline.
func (p *Pipeline) handleTransaction(rec *domain.TransactionRecord) {
	if rec == nil {
		return
	}

	if _, err := envelope.Resolve(rec); err != nil {
		p.metrics.EnvelopeDecodeErrors.Inc()
		p.logger.Printf("envelope decode failed for %s: %v", rec.Signature, err)
		return
	}

	for _, pr := range p.parsers.Parsers() {
		events := pr.Parse(rec)
		if len(events) == 0 {
			continue
		}
		p.metrics.EventsParsed.WithLabelValues(pr.Name()).Add(float64(len(events)))
		for _, ev := range events {
			p.enqueue(ev)
		}
	}
}

// enqueue hands an event to the persistence task without blocking. On a
// full queue the event is dropped and counted.
func (p *Pipeline) enqueue(ev domain.TransactionEvent) {
	if p.repo == nil {
		p.dropped.Add(1)
		p.metrics.QueueDropped.Inc()
		return
	}

	select {
	case p.queue <- ev:
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
	default:
		p.dropped.Add(1)
		p.metrics.QueueDropped.Inc()
		p.logger.Printf("queue full, dropping %s event for %s", ev.Kind(), ev.TxSignature())
	}
}
