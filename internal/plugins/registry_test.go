package plugins

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/ArionMiles/pocketledger/pkg/logging"
	csvplugin "github.com/ArionMiles/pocketledger/pkg/plugins/writers/csv"
	jsonplugin "github.com/ArionMiles/pocketledger/pkg/plugins/writers/json"
	sheetsplugin "github.com/ArionMiles/pocketledger/pkg/plugins/writers/sheets"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, p := range []WriterPlugin{&sheetsplugin.Plugin{}, &csvplugin.Plugin{}, &jsonplugin.Plugin{}} {
		if err := r.RegisterWriter(p); err != nil {
			t.Fatalf("RegisterWriter(%s) error = %v", p.Name(), err)
		}
	}
	return r
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.RegisterWriter(&csvplugin.Plugin{}); err == nil {
		t.Error("duplicate registration succeeded")
	}

	var names []string
	for _, p := range r.ListWriters() {
		names = append(names, p.Name())
	}
	want := []string{"csv", "json", "sheets"}
	if len(names) != len(want) {
		t.Fatalf("ListWriters() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ListWriters()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	if _, err := r.GetWriter("bigquery"); err == nil {
		t.Error("GetWriter() for unknown plugin succeeded")
	}
}

func TestScopes(t *testing.T) {
	r := newTestRegistry(t)

	scopes, err := r.Scopes("sheets")
	if err != nil || len(scopes) != 1 {
		t.Errorf("Scopes(sheets) = %v, %v", scopes, err)
	}
	scopes, err = r.Scopes("csv")
	if err != nil || len(scopes) != 0 {
		t.Errorf("Scopes(csv) = %v, %v", scopes, err)
	}
}

func TestCreateWriter(t *testing.T) {
	r := newTestRegistry(t)
	dir := t.TempDir()

	cfg, _ := json.Marshal(map[string]any{"filePath": filepath.Join(dir, "out.json")})
	if _, err := r.CreateWriter(context.Background(), "json", nil, cfg, logging.Discard()); err != nil {
		t.Errorf("CreateWriter(json) error = %v", err)
	}

	if _, err := r.CreateWriter(context.Background(), "sheets", nil, json.RawMessage(`{"sheetName":"Ledger"}`), logging.Discard()); err == nil {
		t.Error("CreateWriter(sheets) without sheetId or sheetTitle succeeded")
	}

	if _, err := r.CreateWriter(context.Background(), "csv", nil, json.RawMessage(`{`), logging.Discard()); err == nil {
		t.Error("CreateWriter(csv) with invalid config succeeded")
	}
}
