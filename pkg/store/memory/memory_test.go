package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/pocketledger/pkg/api"
)

func record(owner uuid.UUID, day int, category string) api.Record {
	return api.Record{
		ID:       uuid.New(),
		OwnerID:  owner,
		Amount:   decimal.NewFromInt(10),
		Type:     api.TypeExpense,
		Category: category,
		Date:     civil.Date{Year: 2026, Month: time.October, Day: day},
	}
}

func TestInsertAndRecords(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, bob := uuid.New(), uuid.New()

	for _, r := range []api.Record{
		record(alice, 3, "Groceries"),
		record(alice, 10, "Travel"),
		record(alice, 7, "Gift"),
		record(bob, 9, "Salary"),
	} {
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := s.Records(ctx, api.RecordFilter{OwnerID: alice})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, wantDay := range []int{10, 7, 3} {
		if got[i].Date.Day != wantDay {
			t.Errorf("record %d day = %d, want %d", i, got[i].Date.Day, wantDay)
		}
		if got[i].CreatedAt.IsZero() {
			t.Errorf("record %d CreatedAt not set", i)
		}
	}

	ranged, err := s.Records(ctx, api.RecordFilter{
		OwnerID: alice,
		From:    civil.Date{Year: 2026, Month: time.October, Day: 4},
		To:      civil.Date{Year: 2026, Month: time.October, Day: 10},
		Limit:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 1 || ranged[0].Category != "Travel" {
		t.Errorf("ranged = %+v, want only Travel", ranged)
	}
}

func TestInsertErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()

	rec := record(owner, 1, "Other")
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	foreign, err := s.CreateAccount(ctx, api.Account{OwnerID: uuid.New(), Name: "Theirs", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	withForeign := record(owner, 2, "Other")
	withForeign.AccountID = &foreign.ID

	tests := []struct {
		name string
		rec  api.Record
		want error
	}{
		{name: "duplicate id", rec: rec, want: api.ErrConstraint},
		{name: "no owner", rec: record(uuid.Nil, 1, "Other"), want: api.ErrUnauthenticated},
		{name: "account of another owner", rec: withForeign, want: api.ErrConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Insert(ctx, tt.rec); !errors.Is(err, tt.want) {
				t.Errorf("Insert() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()

	acct, err := s.CreateAccount(ctx, api.Account{OwnerID: owner, Name: "Cash", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	rec := record(owner, 1, "Other")
	rec.AccountID = &acct.ID
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Records(ctx, api.RecordFilter{OwnerID: owner})
	*got[0].AccountID = uuid.New()

	again, _ := s.Records(ctx, api.RecordFilter{OwnerID: owner})
	if *again[0].AccountID != acct.ID {
		t.Error("mutating a returned record changed the stored record")
	}
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()

	for _, a := range []api.Account{
		{OwnerID: owner, Name: "Wallet", Active: true},
		{OwnerID: owner, Name: "Brokerage", Active: true},
		{OwnerID: owner, Name: "Old Card", Active: false},
		{OwnerID: uuid.New(), Name: "Someone Else", Active: true},
	} {
		if _, err := s.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", a.Name, err)
		}
	}

	got, err := s.Accounts(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Brokerage" || got[1].Name != "Wallet" {
		t.Errorf("Accounts() = %+v, want Brokerage, Wallet", got)
	}

	if _, err := s.CreateAccount(ctx, api.Account{OwnerID: owner, Name: "wallet"}); !errors.Is(err, api.ErrConstraint) {
		t.Errorf("duplicate name error = %v, want ErrConstraint", err)
	}
	if _, err := s.CreateAccount(ctx, api.Account{OwnerID: owner, Name: "  "}); !errors.Is(err, api.ErrConstraint) {
		t.Errorf("blank name error = %v, want ErrConstraint", err)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()

	for _, c := range []string{"Pets", "Groceries", "Pets"} {
		if err := s.Insert(ctx, record(owner, 1, c)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Insert(ctx, record(uuid.New(), 1, "Hidden")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Categories(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "Groceries" || got[1] != "Pets" {
		t.Errorf("Categories() = %v, want [Groceries Pets]", got)
	}
}

func TestPendingAndMarkExported(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	owner := uuid.New()

	var ids []uuid.UUID
	for day := 1; day <= 3; day++ {
		r := record(owner, day, "Other")
		ids = append(ids, r.ID)
		if err := s.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := s.Pending(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != ids[0] || pending[1].ID != ids[1] {
		t.Fatalf("Pending(2) = %+v, want first two inserted", pending)
	}

	if err := s.MarkExported(ctx, ids[0], ids[1], uuid.New()); err != nil {
		t.Fatal(err)
	}

	pending, err = s.Pending(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Errorf("Pending() after export = %+v, want only the third record", pending)
	}

	all, _ := s.Records(ctx, api.RecordFilter{OwnerID: owner})
	exported := 0
	for _, r := range all {
		if r.ExportedAt != nil {
			exported++
		}
	}
	if exported != 2 {
		t.Errorf("exported = %d, want 2", exported)
	}
}
