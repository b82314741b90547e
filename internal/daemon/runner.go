// Package daemon runs the export pipeline that mirrors recorded transactions
// into an external sink.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/internal/plugins"
	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/reader/pending"
)

// Config selects the writer and how the reader polls.
type Config struct {
	Writer       string
	WriterConfig json.RawMessage
	Interval     time.Duration
	// Follow keeps the daemon running until the context is canceled.
	// Otherwise one batch of pending records is exported.
	Follow bool
}

// Runner manages the export daemon lifecycle.
type Runner struct {
	registry   *plugins.Registry
	source     pending.Source
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new daemon runner. httpClient may be nil for writers that
// need no OAuth scopes.
func New(registry *plugins.Registry, source pending.Source, httpClient *http.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:   registry,
		source:     source,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Run exports pending records until the context is canceled, or once when
// cfg.Follow is false. It returns the number of records marked exported.
func (r *Runner) Run(ctx context.Context, cfg Config) (int, error) {
	if cfg.Writer == "" {
		return 0, errors.New("EXPORT_WRITER is required")
	}

	r.logger.Info("starting export daemon", "writer", cfg.Writer, "follow", cfg.Follow)

	writer, err := r.registry.CreateWriter(
		ctx,
		cfg.Writer,
		r.httpClient,
		cfg.WriterConfig,
		r.logger.With("component", "writer", "plugin", cfg.Writer),
	)
	if err != nil {
		return 0, fmt.Errorf("creating writer: %w", err)
	}

	reader := pending.New(r.source, pending.Config{
		Interval: cfg.Interval,
		Follow:   cfg.Follow,
	}, r.logger.With("component", "reader"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan *api.Record, 100)
	ackChan := make(chan uuid.UUID, 100)

	// The reader waits for ackChan to close, so the writer side closes it
	// and stops the reader if the writer gives up early.
	writerDone := make(chan error, 1)
	go func() {
		err := writer.Write(ctx, records, ackChan)
		close(ackChan)
		cancel()
		writerDone <- err
	}()

	r.logger.Info("daemon started")
	readErr := reader.Read(ctx, records, ackChan)
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		r.logger.Error("reader error", "error", readErr)
	}

	writeErr := <-writerDone
	if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
		r.logger.Error("writer error", "error", writeErr)
	}

	exported := reader.Exported()
	r.logger.Info("daemon stopped", "exported", exported)

	if !cfg.Follow {
		if readErr != nil && !errors.Is(readErr, context.Canceled) {
			return exported, fmt.Errorf("reading pending records: %w", readErr)
		}
		if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
			return exported, fmt.Errorf("writing records: %w", writeErr)
		}
	}
	return exported, nil
}
