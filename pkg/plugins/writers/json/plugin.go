// Package json provides a plugin wrapper for the JSON writer.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/pocketledger/pkg/api"
	jsonwriter "github.com/ArionMiles/pocketledger/pkg/writer/json"
)

// DefaultFilePath is used when no filePath is configured.
const DefaultFilePath = "data/transactions.json"

// Plugin implements the WriterPlugin interface for JSON files.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "json"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep exported transactions in a JSON array file"
}

// RequiredScopes returns nil; the JSON writer needs no OAuth scopes.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath": map[string]any{
				"type":        "string",
				"description": "Path to the JSON output file",
				"default":     DefaultFilePath,
			},
			"batchSize": map[string]any{
				"type":    "integer",
				"default": 10,
			},
			"flushInterval": map[string]any{
				"type":        "integer",
				"description": "Seconds between automatic flushes",
				"default":     30,
			},
		},
	}
}

// Config represents the JSON writer configuration.
type Config struct {
	FilePath      string `json:"filePath"`
	BatchSize     int    `json:"batchSize,omitempty"`
	FlushInterval int    `json:"flushInterval,omitempty"`
}

// NewWriter creates a new JSON writer instance.
func (p *Plugin) NewWriter(_ context.Context, _ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Writer, error) {
	var cfg Config
	if len(configData) > 0 {
		if err := json.Unmarshal(configData, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling json config: %w", err)
		}
	}
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultFilePath
	}

	return jsonwriter.New(jsonwriter.Config{
		FilePath:      cfg.FilePath,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger)
}
