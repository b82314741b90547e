// Package server exposes drafting, submission and the dashboard summary over
// a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/lookup"
	"github.com/ArionMiles/pocketledger/pkg/money"
	"github.com/ArionMiles/pocketledger/pkg/parser"
	"github.com/ArionMiles/pocketledger/pkg/session"
	"github.com/ArionMiles/pocketledger/pkg/submit"
)

const shutdownTimeout = 10 * time.Second

// Store is everything the API needs from persistence.
type Store interface {
	api.Inserter
	api.RecordQuery
	api.Lookup
	CreateAccount(ctx context.Context, a api.Account) (api.Account, error)
}

// Config holds the server settings.
type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
	LookupTTL      time.Duration
	// Rules replaces the keyword vocabulary. The zero value uses the
	// built-in rules.
	Rules    parser.Rules
	Currency string
	Locale   string
}

// Server serves the HTTP API.
type Server struct {
	cfg       Config
	store     Store
	verifier  *session.Verifier
	lookup    *lookup.Cache
	submitter *submit.Submitter
	parsers   map[string]parser.Parser
	format    *money.Formatter
	limiter   *limiter
	logger    *slog.Logger
	now       func() time.Time
	engine    *gin.Engine
}

// New builds a server over store. Every /api route requires a bearer token
// accepted by verifier.
func New(cfg Config, store Store, verifier *session.Verifier, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: store is required")
	}
	if verifier == nil {
		return nil, errors.New("server: session verifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}

	rules := cfg.Rules
	if len(rules.Buckets) == 0 {
		rules = parser.DefaultRules()
	}
	marker := parser.NewMarker()
	keyword := parser.NewKeyword(rules)

	s := &Server{
		cfg:       cfg,
		store:     store,
		verifier:  verifier,
		lookup:    lookup.New(store, cfg.LookupTTL, logger),
		submitter: submit.New(store, logger),
		parsers: map[string]parser.Parser{
			marker.Name():  marker,
			keyword.Name(): keyword,
		},
		format:  money.NewFormatter(cfg.Locale, cfg.Currency),
		limiter: newLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		logger:  logger,
		now:     time.Now,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(s.logger), recovery(s.logger))

	r.GET("/healthz", s.healthz)

	a := r.Group("/api", s.limiter.middleware(s.logger), authenticate(s.verifier))
	a.POST("/drafts/parse", s.parseDraft)
	a.POST("/drafts/apply", s.applyChange)
	a.POST("/transactions", s.createTransaction)
	a.POST("/transactions/quick", s.quickTransaction)
	a.GET("/transactions", s.listTransactions)
	a.GET("/accounts", s.listAccounts)
	a.POST("/accounts", s.createAccount)
	a.GET("/categories", s.listCategories)
	a.GET("/summary", s.getSummary)

	return r
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func (s *Server) today() civil.Date {
	return civil.DateOf(s.now())
}

// parseContext returns the reference lists for owner. Parsing never fails,
// so a lookup error degrades to literal labels.
func (s *Server) parseContext(ctx context.Context, owner uuid.UUID) parser.Context {
	pc, err := s.lookup.Context(ctx, owner, s.today())
	if err != nil {
		s.logger.Warn("lookup unavailable, parsing without known names", "owner_id", owner, "error", err)
		return parser.Context{Categories: api.DefaultCategories, Today: s.today()}
	}
	return pc
}
