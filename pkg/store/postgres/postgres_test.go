package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/logging"
)

func TestNew_ConnectionFailure(t *testing.T) {
	cfg := Config{
		Host:     "nonexistent-host",
		Port:     5432,
		Database: "pocketledger",
		User:     "pocketledger",
		Password: "password",
	}

	if _, err := New(cfg, logging.Discard()); err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: api.ErrConstraint},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, want: api.ErrConstraint},
		{name: "numeric out of range", err: &pgconn.PgError{Code: "22003"}, want: api.ErrConstraint},
		{name: "bad password", err: &pgconn.PgError{Code: "28P01"}, want: api.ErrUnauthenticated},
		{name: "permission denied", err: &pgconn.PgError{Code: "42501"}, want: api.ErrUnauthenticated},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01"}, want: api.ErrUnavailable},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: api.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classify() = %v, lost original error", got)
			}
		})
	}

	syntax := &pgconn.PgError{Code: "42601"}
	if got := classify(syntax); got != error(syntax) {
		t.Errorf("classify(syntax error) = %v, want it unchanged", got)
	}
	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
}

// newTestStore starts a throwaway PostgreSQL container.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pocketledger"),
		tcpostgres.WithUsername("pocketledger"),
		tcpostgres.WithPassword("password"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	s, err := New(Config{URL: dsn}, logging.Discard())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_Integration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	checking, err := s.CreateAccount(ctx, api.Account{
		OwnerID:        owner,
		Name:           "Main Checking",
		Kind:           "bank",
		OpeningBalance: decimal.RequireFromString("1000.50"),
		Active:         true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	savings, err := s.CreateAccount(ctx, api.Account{OwnerID: owner, Name: "Savings", Kind: "savings", Active: true})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if _, err := s.CreateAccount(ctx, api.Account{OwnerID: owner, Name: "main checking"}); !errors.Is(err, api.ErrConstraint) {
		t.Errorf("duplicate account error = %v, want ErrConstraint", err)
	}

	t.Run("accounts", func(t *testing.T) {
		accounts, err := s.Accounts(ctx, owner)
		if err != nil {
			t.Fatal(err)
		}
		if len(accounts) != 2 || accounts[0].Name != "Main Checking" {
			t.Fatalf("Accounts() = %+v", accounts)
		}
		if !accounts[0].OpeningBalance.Equal(decimal.RequireFromString("1000.50")) {
			t.Errorf("OpeningBalance = %s, want 1000.50", accounts[0].OpeningBalance)
		}
	})

	base := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	expense := api.Record{
		ID:          uuid.New(),
		OwnerID:     owner,
		Description: "pizza lunch",
		Amount:      decimal.RequireFromString("12.50"),
		Category:    "Food & Dining",
		Type:        api.TypeExpense,
		Account:     checking.Name,
		AccountID:   &checking.ID,
		Date:        civil.Date{Year: 2026, Month: time.October, Day: 18},
		CreatedAt:   base,
	}
	transfer := api.Record{
		ID:           uuid.New(),
		OwnerID:      owner,
		Amount:       decimal.NewFromInt(200),
		Category:     "Other",
		Type:         api.TypeTransfer,
		AccountID:    &checking.ID,
		TransferToID: &savings.ID,
		Date:         civil.Date{Year: 2026, Month: time.October, Day: 19},
		CreatedAt:    base.Add(time.Minute),
	}

	t.Run("insert", func(t *testing.T) {
		for _, r := range []api.Record{expense, transfer} {
			if err := s.Insert(ctx, r); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
		}
	})

	t.Run("insert violations", func(t *testing.T) {
		bad := expense
		bad.ID = uuid.New()
		bad.Amount = decimal.Zero
		if err := s.Insert(ctx, bad); !errors.Is(err, api.ErrConstraint) {
			t.Errorf("zero amount error = %v, want ErrConstraint", err)
		}

		foreign := expense
		foreign.ID = uuid.New()
		foreign.OwnerID = uuid.New()
		if err := s.Insert(ctx, foreign); !errors.Is(err, api.ErrConstraint) {
			t.Errorf("foreign account error = %v, want ErrConstraint", err)
		}

		if err := s.Insert(ctx, expense); !errors.Is(err, api.ErrConstraint) {
			t.Errorf("duplicate id error = %v, want ErrConstraint", err)
		}
	})

	t.Run("records", func(t *testing.T) {
		got, err := s.Records(ctx, api.RecordFilter{OwnerID: owner})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].ID != transfer.ID || got[1].ID != expense.ID {
			t.Fatalf("Records() = %+v, want transfer then expense", got)
		}
		r := got[1]
		if !r.Amount.Equal(expense.Amount) || r.Date != expense.Date || r.Account != "Main Checking" {
			t.Errorf("record = %+v, want %+v", r, expense)
		}
		if r.AccountID == nil || *r.AccountID != checking.ID || r.TransferToID != nil {
			t.Errorf("account refs = %v/%v", r.AccountID, r.TransferToID)
		}

		ranged, err := s.Records(ctx, api.RecordFilter{
			OwnerID: owner,
			To:      civil.Date{Year: 2026, Month: time.October, Day: 18},
			Limit:   5,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(ranged) != 1 || ranged[0].ID != expense.ID {
			t.Errorf("ranged Records() = %+v, want only the expense", ranged)
		}
	})

	t.Run("categories", func(t *testing.T) {
		got, err := s.Categories(ctx, owner)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0] != "Food & Dining" || got[1] != "Other" {
			t.Errorf("Categories() = %v", got)
		}
	})

	t.Run("export", func(t *testing.T) {
		pending, err := s.Pending(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 2 || pending[0].ID != expense.ID {
			t.Fatalf("Pending() = %+v, want both records oldest first", pending)
		}

		if err := s.MarkExported(ctx, expense.ID); err != nil {
			t.Fatalf("MarkExported() error = %v", err)
		}
		pending, err = s.Pending(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 1 || pending[0].ID != transfer.ID {
			t.Errorf("Pending() after export = %+v, want only the transfer", pending)
		}
	})
}
