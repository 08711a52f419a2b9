package source

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"solana-defi-indexer/internal/domain"
)

// FileSource replays newline-delimited JSON envelopes from disk, one
// transaction per line. It yields (nil, nil) at end of file, which
// drains the pipeline cleanly.
type FileSource struct {
	file    *os.File
	scanner *bufio.Scanner
	logger  *log.Logger
	line    int
}

// NewFileSource opens path for replay.
func NewFileSource(path string, logger *log.Logger) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if logger == nil {
		logger = log.Default()
	}

	scanner := bufio.NewScanner(f)
	// Envelopes for large transactions exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &FileSource{file: f, scanner: scanner, logger: logger}, nil
}

// NextEvent returns the next replayed transaction. Undecodable lines are
// skipped with a log line rather than failing the replay.
func (s *FileSource) NextEvent(ctx context.Context) (*domain.ChainEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read replay file: %w", err)
			}
			return nil, nil // end of stream
		}
		s.line++

		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		// Scanner reuses its buffer; the record owns its payload.
		buf := make([]byte, len(raw))
		copy(buf, raw)

		rec, err := recordFromEnvelope(buf, nil)
		if err != nil {
			s.logger.Printf("skipping line %d: %v", s.line, err)
			continue
		}
		return domain.NewTransactionEvent(rec), nil
	}
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.file.Close()
}
