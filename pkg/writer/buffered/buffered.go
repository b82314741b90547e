// Package buffered provides a buffered writer base for batch writes.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
)

// DefaultBatchSize is the default number of records to buffer before flushing.
const DefaultBatchSize = 10

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher is called when the buffer needs to be flushed.
type Flusher func(records []*api.Record) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers records and flushes them in batches. After a successful
// flush the ids of the flushed records are sent on the ack channel.
type Writer struct {
	buffer  []*api.Record
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
}

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]*api.Record, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes records from in until it is closed or ctx is done.
// A nil ack channel disables acknowledgements.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Record, ack chan<- uuid.UUID) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Info("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown(ctx)
		case <-ticker.C:
			if err := w.flush(ctx, ack); err != nil {
				w.logger.Error("failed to flush on interval", "error", err)
			}
		case rec, ok := <-in:
			if !ok {
				w.logger.Info("input channel closed, flushing remaining buffer")
				return w.flush(ctx, ack)
			}
			if w.add(rec) {
				if err := w.flush(ctx, ack); err != nil {
					w.logger.Error("failed to flush on batch size", "error", err)
				}
			}
		}
	}
}

// handleShutdown writes what is buffered. Acknowledgements are dropped, so
// those records are exported again on the next run.
func (w *Writer) handleShutdown(ctx context.Context) error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	if err := w.flush(context.WithoutCancel(ctx), nil); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
	}
	return ctx.Err()
}

func (w *Writer) add(rec *api.Record) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, rec)
	return len(w.buffer) >= w.config.BatchSize
}

// flush writes all buffered records using the flusher function. On failure
// the records stay buffered for the next attempt.
func (w *Writer) flush(ctx context.Context, ack chan<- uuid.UUID) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	toFlush := make([]*api.Record, len(w.buffer))
	copy(toFlush, w.buffer)
	w.mu.Unlock()

	w.logger.Debug("flushing buffer", "count", len(toFlush))
	if err := w.flusher(toFlush); err != nil {
		return err
	}

	w.mu.Lock()
	w.buffer = append(w.buffer[:0], w.buffer[len(toFlush):]...)
	w.mu.Unlock()

	w.logger.Info("flushed records", "count", len(toFlush))

	if ack == nil {
		return nil
	}
	for _, rec := range toFlush {
		select {
		case ack <- rec.ID:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// BufferLen returns the current number of buffered records.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
