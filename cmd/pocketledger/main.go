// Command pocketledger runs the personal finance tracker: the HTTP API, the
// export daemon and a few maintenance commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/pocketledger/internal/plugins"
	"github.com/ArionMiles/pocketledger/pkg/config"
	"github.com/ArionMiles/pocketledger/pkg/logging"
	csvplugin "github.com/ArionMiles/pocketledger/pkg/plugins/writers/csv"
	jsonplugin "github.com/ArionMiles/pocketledger/pkg/plugins/writers/json"
	sheetsplugin "github.com/ArionMiles/pocketledger/pkg/plugins/writers/sheets"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"serve", "Run the HTTP API", runServe},
	{"export", "Export unexported transactions through a writer plugin", runExport},
	{"parse", "Parse a line of text into a draft transaction", runParse},
	{"setup", "Authorize Google Sheets access", runSetup},
	{"status", "Check configuration, credentials and storage", runStatus},
	{"token", "Issue a development session token", runToken},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	name := os.Args[1]
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		if err := cmd.run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if name != "help" && name != "-h" && name != "--help" {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	}
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: pocketledger <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.name, cmd.usage)
	}
}

// configFlags registers the flags every command uses to locate its
// configuration.
type configFlags struct {
	envFile    string
	configFile string
}

func (c *configFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.envFile, "env", ".env", "dotenv file to load")
	fs.StringVar(&c.configFile, "config", "config.json", "JSON config file")
}

func (c *configFlags) load() (config.Config, error) {
	cfg, err := config.Load(config.Options{EnvFile: c.envFile, ConfigFile: c.configFile})
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg config.Config) *slog.Logger {
	return logging.Setup(logging.FromSettings(cfg.LogLevel, cfg.LogJSON))
}

func newRegistry() (*plugins.Registry, error) {
	registry := plugins.NewRegistry()
	for _, p := range []plugins.WriterPlugin{
		&csvplugin.Plugin{},
		&jsonplugin.Plugin{},
		&sheetsplugin.Plugin{},
	} {
		if err := registry.RegisterWriter(p); err != nil {
			return nil, fmt.Errorf("registering %s plugin: %w", p.Name(), err)
		}
	}
	return registry, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
