package pipeline

import (
	"context"
	"time"

	"solana-defi-indexer/internal/domain"
)

// runPersistence is the background persistence task. It buffers parsed
// events and flushes them in micro-batches: when the buffer reaches the
// batch size, on every flush-interval tick, and once more when the
// queue is closed. Flush failures are logged and counted, never
// retried; the buffer is cleared regardless of outcome.
func (p *Pipeline) runPersistence() {
	buffer := make([]domain.TransactionEvent, 0, p.batchSize)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-p.queue:
			if !ok {
				p.flush(buffer)
				return
			}
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
			buffer = append(buffer, ev)
			if len(buffer) >= p.batchSize {
				p.flush(buffer)
				buffer = buffer[:0]
			}

		case <-ticker.C:
			if len(buffer) > 0 {
				p.flush(buffer)
				buffer = buffer[:0]
			}
		}
	}
}

// flush writes one batch. Runs on the background context so the final
// drain completes even after the pipeline context is cancelled.
func (p *Pipeline) flush(batch []domain.TransactionEvent) {
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	saved, err := p.repo.SaveEventsBatch(context.Background(), batch)
	p.metrics.BatchFlushes.Inc()
	p.metrics.FlushDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.metrics.BatchFlushFailures.Inc()
		p.logger.Printf("batch flush failed, %d events lost: %v", len(batch), err)
		return
	}
	p.metrics.EventsPersisted.Add(float64(saved))
}
