package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/ArionMiles/pocketledger/internal/daemon"
	"github.com/ArionMiles/pocketledger/internal/plugins"
	"github.com/ArionMiles/pocketledger/pkg/client"
	"github.com/ArionMiles/pocketledger/pkg/config"
	"github.com/ArionMiles/pocketledger/pkg/parser"
	"github.com/ArionMiles/pocketledger/pkg/reader/pending"
	"github.com/ArionMiles/pocketledger/pkg/server"
	"github.com/ArionMiles/pocketledger/pkg/session"
	"github.com/ArionMiles/pocketledger/pkg/store/memory"
	"github.com/ArionMiles/pocketledger/pkg/store/postgres"
)

// ledgerStore is what the API and the export daemon need from storage.
type ledgerStore interface {
	server.Store
	pending.Source
}

func openStore(cfg config.Config, logger *slog.Logger) (ledgerStore, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.New(), func() {}, nil
	default:
		store, err := postgres.New(postgres.Config{
			Host:        cfg.Postgres.Host,
			Port:        cfg.Postgres.Port,
			Database:    cfg.Postgres.Database,
			User:        cfg.Postgres.User,
			Password:    cfg.Postgres.Password,
			SSLMode:     cfg.Postgres.SSLMode,
			MaxPoolSize: cfg.Postgres.MaxPoolSize,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return store, store.Close, nil
	}
}

func loadRules(cfg config.Config) (parser.Rules, error) {
	if cfg.KeywordRulesFile == "" {
		return parser.DefaultRules(), nil
	}
	rules, err := parser.LoadRulesFile(cfg.KeywordRulesFile)
	if err != nil {
		return parser.Rules{}, fmt.Errorf("loading keyword rules: %w", err)
	}
	return rules, nil
}

// runServe starts the HTTP API and, with -export, the export daemon.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var cf configFlags
	cf.register(fs)
	addr := fs.String("addr", "", "listen address (overrides POCKETLEDGER_ADDR)")
	export := fs.Bool("export", false, "run the export daemon alongside the API")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	logger := setupLogger(cfg)

	verifier, err := session.NewVerifier(cfg.SessionSecret, cfg.SessionAudience)
	if err != nil {
		return fmt.Errorf("SESSION_SECRET: %w", err)
	}
	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(server.Config{
		Addr:           cfg.Addr,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		LookupTTL:      cfg.LookupTTL,
		Rules:          rules,
		Currency:       cfg.Currency,
		Locale:         cfg.Locale,
	}, store, verifier, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("configuration loaded",
		"addr", cfg.Addr,
		"store", cfg.Store,
		"keyword_buckets", len(rules.Buckets),
		"export", *export,
	)

	ctx, cancel := signalContext(logger)
	defer cancel()

	var wg sync.WaitGroup
	if *export {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		httpClient, err := exportClient(ctx, cfg, registry)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner := daemon.New(registry, store, httpClient, logger)
			if _, err := runner.Run(ctx, daemon.Config{
				Writer:       cfg.ExportWriter,
				WriterConfig: cfg.ExportWriterConfig,
				Interval:     cfg.ExportInterval,
				Follow:       true,
			}); err != nil {
				logger.Error("export daemon failed", "error", err)
			}
		}()
	}

	err = srv.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// exportClient returns an OAuth client when the configured writer needs
// scopes, and nil otherwise.
func exportClient(ctx context.Context, cfg config.Config, registry *plugins.Registry) (*http.Client, error) {
	scopes, err := registry.Scopes(cfg.ExportWriter)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, nil
	}
	httpClient, err := client.New(ctx, client.Config{
		SecretFile: cfg.GoogleClientSecretFile,
		TokenFile:  cfg.GoogleTokenFile,
		Scopes:     scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("creating oauth client for %s writer: %w", cfg.ExportWriter, err)
	}
	return httpClient, nil
}
