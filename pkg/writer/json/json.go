// Package json implements a Writer that keeps exported records in a JSON file.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/writer/buffered"
)

// Writer writes records to a JSON array file with buffered batching.
type Writer struct {
	filePath string
	records  []*api.Record
	seen     map[uuid.UUID]int
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
	// BatchSize is the number of records to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes (seconds).
	FlushInterval int
}

// New creates a new JSON writer, loading the records already in the file.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, errors.New("json writer: file path is required")
	}

	w := &Writer{
		filePath: cfg.FilePath,
		records:  make([]*api.Record, 0),
		seen:     make(map[uuid.UUID]int),
		logger:   logger,
	}

	if err := w.loadExisting(); err != nil {
		logger.Warn("could not load existing records", "error", err)
	}

	bufCfg := buffered.Config{BatchSize: cfg.BatchSize}
	if cfg.FlushInterval > 0 {
		bufCfg.FlushInterval = time.Duration(cfg.FlushInterval) * time.Second
	}
	w.buffered = buffered.New(w.flushBatch, bufCfg, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.records))
	return w, nil
}

func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var existing []*api.Record
	if err := json.Unmarshal(data, &existing); err != nil {
		return err
	}
	for _, r := range existing {
		w.upsert(r)
	}
	return nil
}

// upsert replaces a record already present with the same id. Records are
// delivered at least once, so the same id can arrive again after a restart.
func (w *Writer) upsert(r *api.Record) {
	if i, ok := w.seen[r.ID]; ok {
		w.records[i] = r
		return
	}
	w.seen[r.ID] = len(w.records)
	w.records = append(w.records, r)
}

// Write consumes records from in and writes them to the file.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Record, ack chan<- uuid.UUID) error {
	return w.buffered.Write(ctx, in, ack)
}

func (w *Writer) flushBatch(records []*api.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range records {
		w.upsert(r)
	}

	// JSON arrays can't be appended to, so the whole file is rewritten.
	data, err := json.MarshalIndent(w.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}
	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	w.logger.Debug("wrote records to json",
		"batch_count", len(records),
		"total_count", len(w.records),
	)
	return nil
}

// RecordCount returns the total number of records in the file.
func (w *Writer) RecordCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}
