// Package sheets implements a Writer that appends exported records to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/writer"
	"github.com/ArionMiles/pocketledger/pkg/writer/buffered"
)

// Default configuration values.
const (
	DefaultSheetTitle = "pocketledger"
	DefaultSheetName  = "Sheet1"
	DefaultRetryDelay = 60 * time.Second
	retryAttempts     = 3
)

// Writer writes records to a Google Sheet with buffered batching.
type Writer struct {
	client        *sheets.Service
	spreadsheetID string
	sheetName     string
	retryDelay    time.Duration
	logger        *slog.Logger
	buffered      *buffered.Writer
}

// Config holds configuration for the Sheets writer.
type Config struct {
	// SheetTitle is the title for a new spreadsheet (if SheetID is empty).
	SheetTitle string
	// SheetID is the ID of an existing spreadsheet to use.
	SheetID string
	// SheetName is the name of the sheet within the spreadsheet.
	SheetName string
	// BatchSize is the number of records to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration
	// RetryDelay is the wait between attempts after a rate limit response.
	RetryDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.SheetTitle == "" {
		c.SheetTitle = DefaultSheetTitle
	}
	if c.SheetName == "" {
		c.SheetName = DefaultSheetName
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// New creates a new Sheets writer, opening cfg.SheetID or creating a new
// spreadsheet with a header row.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.setDefaults()

	client, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	w := &Writer{
		client:     client,
		sheetName:  cfg.SheetName,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}

	id, err := w.initSpreadsheet(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	w.spreadsheetID = id

	w.buffered = buffered.New(
		w.flushBatch,
		buffered.Config{BatchSize: cfg.BatchSize, FlushInterval: cfg.FlushInterval},
		logger.With("component", "sheets_buffer"),
	)

	logger.Info("sheets writer initialized", "spreadsheet_id", id, "sheet", cfg.SheetName)
	return w, nil
}

func (w *Writer) initSpreadsheet(ctx context.Context, cfg Config) (string, error) {
	if cfg.SheetID != "" {
		spreadsheet, err := w.client.Spreadsheets.Get(cfg.SheetID).Context(ctx).Do()
		if err == nil {
			w.logger.Info("using existing spreadsheet", "title", spreadsheet.Properties.Title, "id", cfg.SheetID)
			return spreadsheet.SpreadsheetId, nil
		}
		w.logger.Warn("failed to get spreadsheet, will create new one", "id", cfg.SheetID, "error", err)
	}

	spreadsheet, err := w.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: cfg.SheetTitle},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: cfg.SheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating spreadsheet: %w", err)
	}
	w.logger.Info("created new spreadsheet", "title", cfg.SheetTitle, "id", spreadsheet.SpreadsheetId)

	header := &sheets.ValueRange{Values: [][]any{toValues(writer.Headers)}}
	_, err = w.client.Spreadsheets.Values.Update(spreadsheet.SpreadsheetId, headerRange(cfg.SheetName), header).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("writing headers: %w", err)
	}

	return spreadsheet.SpreadsheetId, nil
}

// Write consumes records from in and appends them to the sheet.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Record, ack chan<- uuid.UUID) error {
	w.logger.Info("sheets writer started")
	return w.buffered.Write(ctx, in, ack)
}

// flushBatch appends a batch in a single API call, retrying on HTTP 429.
func (w *Writer) flushBatch(records []*api.Record) error {
	if len(records) == 0 {
		return nil
	}
	req := &sheets.ValueRange{Values: batchValues(records)}

	// The buffered writer owns cancellation; an append in progress completes.
	ctx := context.Background()

	err := retry.Do(
		func() error {
			_, err := w.client.Spreadsheets.Values.Append(w.spreadsheetID, appendRange(w.sheetName), req).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			if isRateLimited(err) {
				w.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(retryAttempts),
		retry.Delay(w.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending batch to sheet: %w", err)
	}

	w.logger.Info("wrote record batch", "count", len(records))
	return nil
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (w *Writer) SpreadsheetID() string {
	return w.spreadsheetID
}

// BufferLen returns the current number of buffered records.
func (w *Writer) BufferLen() int {
	if w.buffered == nil {
		return 0
	}
	return w.buffered.BufferLen()
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

func headerRange(sheet string) string {
	return fmt.Sprintf("%s!A1:G1", sheet)
}

func appendRange(sheet string) string {
	return fmt.Sprintf("%s!A2:G2", sheet)
}

func batchValues(records []*api.Record) [][]any {
	values := make([][]any, 0, len(records))
	for _, r := range records {
		values = append(values, toValues(writer.Row(r)))
	}
	return values
}

func toValues(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
