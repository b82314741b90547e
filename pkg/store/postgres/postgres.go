// Package postgres stores records and accounts in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/pocketledger/pkg/api"
)

//go:embed 001_create_schema.sql
var migrationSQL string

// Config holds the PostgreSQL connection configuration.
type Config struct {
	// URL is a full connection string. When set, the discrete fields are ignored.
	URL string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

func (c Config) connString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Store reads and writes pocketledger data through a connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL and applies the schema.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "postgres")

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", classify(err))
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	s := &Store{pool: pool, logger: logger}
	if err := s.runMigrations(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	s.logger.Info("running database migrations")
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	s.logger.Info("migrations completed successfully")
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}

// Insert stores one finalized record.
func (s *Store) Insert(ctx context.Context, rec api.Record) error {
	if rec.OwnerID == uuid.Nil {
		return fmt.Errorf("inserting record: %w", api.ErrUnauthenticated)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, owner_id, description, amount, category, type,
			account_label, account_id, transfer_to_id, date, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
	`,
		rec.ID,
		rec.OwnerID,
		rec.Description,
		rec.Amount.String(),
		rec.Category,
		string(rec.Type),
		rec.Account,
		rec.AccountID,
		rec.TransferToID,
		rec.Date.In(time.UTC),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", classify(err))
	}
	return nil
}

const recordColumns = `
	id, owner_id, description, amount::text, category, type,
	account_label, account_id, transfer_to_id, date, created_at, exported_at`

// Records returns the owner's records matching filter, newest first.
func (s *Store) Records(ctx context.Context, filter api.RecordFilter) ([]api.Record, error) {
	var from, to *time.Time
	if !filter.From.IsZero() {
		t := filter.From.In(time.UTC)
		from = &t
	}
	if !filter.To.IsZero() {
		t := filter.To.In(time.UTC)
		to = &t
	}
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT`+recordColumns+`
		FROM transactions
		WHERE owner_id = $1
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
		ORDER BY date DESC, created_at DESC
		LIMIT $4
	`, filter.OwnerID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", classify(err))
	}
	return collectRecords(rows)
}

// Pending returns up to limit unexported records, oldest first. A limit of
// zero returns all of them.
func (s *Store) Pending(ctx context.Context, limit int) ([]api.Record, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT`+recordColumns+`
		FROM transactions
		WHERE exported_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("querying pending records: %w", classify(err))
	}
	return collectRecords(rows)
}

// MarkExported stamps the given records as exported in one transaction.
func (s *Store) MarkExported(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`UPDATE transactions SET exported_at = NOW() WHERE id = $1 AND exported_at IS NULL`, id)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("marking records exported: %w", classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", classify(err))
	}
	s.logger.Debug("marked records exported", "count", len(ids))
	return nil
}

// Accounts returns the owner's active accounts ordered by name.
func (s *Store) Accounts(ctx context.Context, ownerID uuid.UUID) ([]api.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, kind, opening_balance::text, active, created_at
		FROM accounts
		WHERE owner_id = $1 AND active
		ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", classify(err))
	}
	defer rows.Close()

	var out []api.Account
	for rows.Next() {
		var (
			a       api.Account
			opening string
		)
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Kind, &opening, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		if a.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
			return nil, fmt.Errorf("parsing opening balance: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading accounts: %w", classify(err))
	}
	return out, nil
}

// Categories returns the distinct categories the owner has used.
func (s *Store) Categories(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT category FROM transactions WHERE owner_id = $1 ORDER BY category
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", classify(err))
	}

	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", classify(err))
	}
	return categories, nil
}

// CreateAccount stores a new account, assigning an id when none is set.
func (s *Store) CreateAccount(ctx context.Context, a api.Account) (api.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.OwnerID == uuid.Nil {
		return api.Account{}, fmt.Errorf("creating account: %w", api.ErrUnauthenticated)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, owner_id, name, kind, opening_balance, active)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		RETURNING created_at
	`, a.ID, a.OwnerID, a.Name, a.Kind, a.OpeningBalance.String(), a.Active).Scan(&a.CreatedAt)
	if err != nil {
		return api.Account{}, fmt.Errorf("creating account %q: %w", a.Name, classify(err))
	}
	return a, nil
}

func collectRecords(rows pgx.Rows) ([]api.Record, error) {
	defer rows.Close()

	var out []api.Record
	for rows.Next() {
		var (
			r      api.Record
			amount string
			typ    string
			date   time.Time
		)
		if err := rows.Scan(
			&r.ID, &r.OwnerID, &r.Description, &amount, &r.Category, &typ,
			&r.Account, &r.AccountID, &r.TransferToID, &date, &r.CreatedAt, &r.ExportedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		var err error
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount of %s: %w", r.ID, err)
		}
		r.Type = api.TransactionType(typ)
		r.Date = civil.DateOf(date)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", classify(err))
	}
	return out, nil
}

// classify maps driver errors onto the api sentinels, keeping the original
// error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "22"):
			return fmt.Errorf("%w: %w", api.ErrConstraint, err)
		case strings.HasPrefix(pgErr.Code, "28"), pgErr.Code == "42501":
			return fmt.Errorf("%w: %w", api.ErrUnauthenticated, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return fmt.Errorf("%w: %w", api.ErrUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", api.ErrUnavailable, err)
	}
	return err
}
