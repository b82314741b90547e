package json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/logging"
)

func export(t *testing.T, path string, recs ...*api.Record) *Writer {
	t.Helper()
	w, err := New(Config{FilePath: path}, logging.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	in := make(chan *api.Record, len(recs))
	for _, r := range recs {
		in <- r
	}
	close(in)
	if err := w.Write(context.Background(), in, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return w
}

func TestWriterPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	rec := &api.Record{
		ID:          uuid.New(),
		Description: "Coffee",
		Amount:      decimal.RequireFromString("4.50"),
		Category:    "Food & Dining",
		Type:        api.TypeExpense,
		Date:        civil.Date{Year: 2026, Month: time.October, Day: 19},
	}

	export(t, path, rec)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []api.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("file is not a JSON array: %v", err)
	}
	if len(got) != 1 || got[0].ID != rec.ID || !got[0].Amount.Equal(rec.Amount) || got[0].Date != rec.Date {
		t.Errorf("file records = %+v", got)
	}

	again := *rec
	again.Description = "Coffee and cake"
	w := export(t, path, &again, &api.Record{ID: uuid.New(), Type: api.TypeIncome})

	if w.RecordCount() != 2 {
		t.Errorf("RecordCount() = %d, want 2 (re-delivered id replaced)", w.RecordCount())
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(Config{}, logging.Discard()); err == nil {
		t.Error("New() with empty path succeeded")
	}
}
