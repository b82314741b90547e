// Package pending implements a Reader that streams records not yet exported.
package pending

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
)

// Defaults.
const (
	DefaultInterval  = time.Minute
	DefaultBatchSize = 100
	markTimeout      = 10 * time.Second
)

// Source is the store side of an export: records waiting to be exported and
// a way to flag them once written.
type Source interface {
	// Pending returns unexported records, oldest first.
	Pending(ctx context.Context, limit int) ([]api.Record, error)
	MarkExported(ctx context.Context, ids ...uuid.UUID) error
}

// Config holds configuration for the pending reader.
type Config struct {
	// Interval between polls in follow mode.
	Interval time.Duration
	// BatchSize is the most records fetched per poll.
	BatchSize int
	// Follow keeps polling until the context is canceled. Otherwise Read
	// sends one batch and closes the output channel.
	Follow bool
}

// Reader polls a Source and marks records exported once they are acknowledged.
type Reader struct {
	source   Source
	interval time.Duration
	batch    int
	follow   bool
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
	exported atomic.Int64
}

// New creates a pending reader.
func New(source Source, cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Reader{
		source:   source,
		interval: cfg.Interval,
		batch:    cfg.BatchSize,
		follow:   cfg.Follow,
		logger:   logger,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// Read sends pending records to out and closes it when done. Ids received on
// ack are marked exported. Read returns once ack is closed, so every
// acknowledgement is recorded before it returns; a nil ack is not waited on.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Record, ack <-chan uuid.UUID) error {
	ackDone := make(chan struct{})
	go r.handleAcknowledgments(ctx, ack, ackDone)

	err := r.run(ctx, out)
	close(out)

	<-ackDone
	r.logger.Info("pending reader stopped", "exported", r.Exported())
	return err
}

func (r *Reader) run(ctx context.Context, out chan<- *api.Record) error {
	if err := r.poll(ctx, out); err != nil {
		if !r.follow {
			return err
		}
		r.logger.Error("polling pending records", "error", err)
	}
	if !r.follow {
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pending reader stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := r.poll(ctx, out); err != nil {
				r.logger.Error("polling pending records", "error", err)
			}
		}
	}
}

// poll sends the pending records that are not already awaiting an ack.
func (r *Reader) poll(ctx context.Context, out chan<- *api.Record) error {
	records, err := r.source.Pending(ctx, r.batch)
	if err != nil {
		return fmt.Errorf("fetching pending records: %w", err)
	}

	sent := 0
	for i := range records {
		rec := records[i]
		if !r.claim(rec.ID) {
			continue
		}
		select {
		case out <- &rec:
			sent++
		case <-ctx.Done():
			r.release(rec.ID)
			return ctx.Err()
		}
	}
	if sent > 0 {
		r.logger.Info("sent pending records", "count", sent)
	}
	return nil
}

func (r *Reader) handleAcknowledgments(ctx context.Context, ack <-chan uuid.UUID, done chan<- struct{}) {
	defer close(done)
	if ack == nil {
		return
	}
	for id := range ack {
		ids := []uuid.UUID{id}
	drain:
		for len(ids) < r.batch {
			select {
			case next, ok := <-ack:
				if !ok {
					break drain
				}
				ids = append(ids, next)
			default:
				break drain
			}
		}
		r.mark(ctx, ids)
	}
	r.logger.Debug("acknowledgment channel closed")
}

// mark records acknowledged ids. Acked records are already written, so the
// update runs even after ctx is canceled.
func (r *Reader) mark(ctx context.Context, ids []uuid.UUID) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()

	err := r.source.MarkExported(mctx, ids...)
	for _, id := range ids {
		r.release(id)
	}
	if err != nil {
		r.logger.Warn("failed to mark records exported, they will be exported again",
			"count", len(ids),
			"error", err,
		)
		return
	}
	r.exported.Add(int64(len(ids)))
	r.logger.Debug("marked records exported", "count", len(ids))
}

func (r *Reader) claim(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[id]; ok {
		return false
	}
	r.inFlight[id] = struct{}{}
	return true
}

func (r *Reader) release(id uuid.UUID) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

// Exported returns how many records this reader has marked exported.
func (r *Reader) Exported() int {
	return int(r.exported.Load())
}
