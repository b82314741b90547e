package main

import (
	"flag"
	"fmt"

	"github.com/ArionMiles/pocketledger/internal/daemon"
)

// runExport mirrors unexported transactions into the configured writer.
func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var cf configFlags
	cf.register(fs)
	writer := fs.String("writer", "", "writer plugin (overrides EXPORT_WRITER)")
	follow := fs.Bool("follow", false, "keep polling for new transactions until interrupted")
	list := fs.Bool("list", false, "list the available writers and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry, err := newRegistry()
	if err != nil {
		return err
	}
	if *list {
		for _, p := range registry.ListWriters() {
			fmt.Printf("%-8s %s\n", p.Name(), p.Description())
		}
		return nil
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if *writer != "" && *writer != cfg.ExportWriter {
		cfg.ExportWriter = *writer
		// The configured writer settings belong to another plugin.
		cfg.ExportWriterConfig = nil
	}
	logger := setupLogger(cfg)

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signalContext(logger)
	defer cancel()

	httpClient, err := exportClient(ctx, cfg, registry)
	if err != nil {
		return err
	}

	runner := daemon.New(registry, store, httpClient, logger)
	exported, err := runner.Run(ctx, daemon.Config{
		Writer:       cfg.ExportWriter,
		WriterConfig: cfg.ExportWriterConfig,
		Interval:     cfg.ExportInterval,
		Follow:       *follow,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d transaction(s) to %s\n", exported, cfg.ExportWriter)
	return nil
}
