package draft

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/pocketledger/pkg/api"
)

var today = civil.Date{Year: 2026, Month: time.October, Day: 19}

func validDraft() Draft {
	d := New(today)
	d.Amount = "12.50"
	d.Category = "Food & Dining"
	d.Description = "lunch"
	return d
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	orig := validDraft()
	snapshot := orig

	next, err := Apply(orig, Change{Field: FieldAmount, Value: " 99 "})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if orig != snapshot {
		t.Errorf("Apply mutated its input: got %+v, want %+v", orig, snapshot)
	}
	if next.Amount != "99" {
		t.Errorf("Amount = %q, want %q", next.Amount, "99")
	}
	if !next.Touched.Has(FieldAmount) {
		t.Errorf("Touched = %v, want amount marked", next.Touched)
	}
}

func TestApply(t *testing.T) {
	accountID := uuid.New()
	otherID := uuid.New()

	tests := []struct {
		name    string
		start   Draft
		change  Change
		check   func(t *testing.T, d Draft)
		wantErr bool
	}{
		{
			name:   "type income",
			start:  validDraft(),
			change: Change{Field: FieldType, Value: "Income"},
			check: func(t *testing.T, d Draft) {
				if d.Type != api.TypeIncome {
					t.Errorf("Type = %q, want income", d.Type)
				}
			},
		},
		{
			name:    "unknown type",
			start:   validDraft(),
			change:  Change{Field: FieldType, Value: "refund"},
			wantErr: true,
		},
		{
			name:   "leaving transfer clears destination",
			start:  Draft{Type: api.TypeTransfer, TransferToID: otherID.String(), Date: today},
			change: Change{Field: FieldType, Value: "expense"},
			check: func(t *testing.T, d Draft) {
				if d.TransferToID != "" {
					t.Errorf("TransferToID = %q, want empty", d.TransferToID)
				}
			},
		},
		{
			name:   "account by id",
			start:  Draft{Account: "Cash", Date: today},
			change: Change{Field: FieldAccount, Value: accountID.String(), Label: "Main Checking"},
			check: func(t *testing.T, d Draft) {
				if d.AccountID != accountID.String() || d.Account != "Main Checking" {
					t.Errorf("account = %q/%q, want Main Checking/%s", d.Account, d.AccountID, accountID)
				}
			},
		},
		{
			name:   "account by label clears id",
			start:  Draft{AccountID: accountID.String(), Date: today},
			change: Change{Field: FieldAccount, Value: "Wallet"},
			check: func(t *testing.T, d Draft) {
				if d.AccountID != "" || d.Account != "Wallet" {
					t.Errorf("account = %q/%q, want Wallet with no id", d.Account, d.AccountID)
				}
			},
		},
		{
			name:    "transfer destination must be an id",
			start:   validDraft(),
			change:  Change{Field: FieldTransferTo, Value: "savings"},
			wantErr: true,
		},
		{
			name:   "date",
			start:  validDraft(),
			change: Change{Field: FieldDate, Value: "2026-10-01"},
			check: func(t *testing.T, d Draft) {
				want := civil.Date{Year: 2026, Month: time.October, Day: 1}
				if d.Date != want {
					t.Errorf("Date = %v, want %v", d.Date, want)
				}
			},
		},
		{
			name:    "bad date",
			start:   validDraft(),
			change:  Change{Field: FieldDate, Value: "yesterday"},
			wantErr: true,
		},
		{
			name:    "unknown field",
			start:   validDraft(),
			change:  Change{Field: 0, Value: "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.start, tt.change)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Apply() = %+v, want error", got)
				}
				if got != tt.start {
					t.Errorf("Apply() on error = %+v, want input unchanged", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !got.Touched.Has(tt.change.Field) {
				t.Errorf("Touched = %v, want %v marked", got.Touched, tt.change.Field)
			}
			tt.check(t, got)
		})
	}
}

func TestReparseKeepsTouchedFields(t *testing.T) {
	current := validDraft()
	current, err := Apply(current, Change{Field: FieldCategory, Value: "Travel"})
	if err != nil {
		t.Fatal(err)
	}

	parsed := New(today)
	parsed.Amount = "40"
	parsed.Category = "Food & Dining"
	parsed.Description = "taxi"

	got := Reparse(current, parsed)

	if got.Category != "Travel" {
		t.Errorf("Category = %q, want touched value %q", got.Category, "Travel")
	}
	if got.Amount != "40" {
		t.Errorf("Amount = %q, want parsed value %q", got.Amount, "40")
	}
	if got.Description != "taxi" {
		t.Errorf("Description = %q, want parsed value %q", got.Description, "taxi")
	}
	if got.Touched != FieldCategory {
		t.Errorf("Touched = %v, want %v", got.Touched, FieldCategory)
	}
}

func TestValidate(t *testing.T) {
	src, dst := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		mutate     func(d *Draft)
		wantFields []string
	}{
		{name: "valid", mutate: func(d *Draft) {}},
		{name: "missing amount", mutate: func(d *Draft) { d.Amount = "" }, wantFields: []string{"amount"}},
		{name: "zero amount", mutate: func(d *Draft) { d.Amount = "0" }, wantFields: []string{"amount"}},
		{name: "garbage amount", mutate: func(d *Draft) { d.Amount = "abc" }, wantFields: []string{"amount"}},
		{name: "scientific amount", mutate: func(d *Draft) { d.Amount = "1e3" }, wantFields: []string{"amount"}},
		{name: "sub-cent amount", mutate: func(d *Draft) { d.Amount = "0.001" }, wantFields: []string{"amount"}},
		{name: "three decimal amount", mutate: func(d *Draft) { d.Amount = "12.345" }, wantFields: []string{"amount"}},
		{name: "oversized amount", mutate: func(d *Draft) { d.Amount = "99999999999999999999" }, wantFields: []string{"amount"}},
		{name: "missing category", mutate: func(d *Draft) { d.Category = " " }, wantFields: []string{"category"}},
		{
			name:       "missing amount and category",
			mutate:     func(d *Draft) { d.Amount = ""; d.Category = "" },
			wantFields: []string{"amount", "category"},
		},
		{name: "bad type", mutate: func(d *Draft) { d.Type = "gift" }, wantFields: []string{"type"}},
		{
			name:       "transfer without source",
			mutate:     func(d *Draft) { d.Type = api.TypeTransfer; d.TransferToID = dst.String() },
			wantFields: []string{"account"},
		},
		{
			name: "transfer to same account",
			mutate: func(d *Draft) {
				d.Type = api.TypeTransfer
				d.AccountID = src.String()
				d.TransferToID = src.String()
			},
			wantFields: []string{"transfer_to"},
		},
		{
			name: "valid transfer",
			mutate: func(d *Draft) {
				d.Type = api.TypeTransfer
				d.AccountID = src.String()
				d.TransferToID = dst.String()
			},
		},
		{name: "missing date", mutate: func(d *Draft) { d.Date = civil.Date{} }, wantFields: []string{"date"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			err := Validate(d)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if len(verr.Problems) != len(tt.wantFields) {
				t.Fatalf("got %d problems %+v, want fields %v", len(verr.Problems), verr.Problems, tt.wantFields)
			}
			for i, field := range tt.wantFields {
				if verr.Problems[i].Field != field {
					t.Errorf("problem %d field = %q, want %q", i, verr.Problems[i].Field, field)
				}
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	d := New(today)
	err := Validate(d)
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	want := "please fill in all required fields: amount, category"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFinalizeRejectsUnstorableAmounts(t *testing.T) {
	for _, amount := range []string{"1e3", "0.001", "12.345", "99999999999999999999"} {
		t.Run(amount, func(t *testing.T) {
			d := validDraft()
			d.Amount = amount

			rec, err := Finalize(d, uuid.New(), time.Now())
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Finalize(%q) = %+v, %v; want *ValidationError", amount, rec, err)
			}
			if len(verr.Problems) != 1 || verr.Problems[0].Field != "amount" {
				t.Errorf("problems = %+v, want one amount problem", verr.Problems)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	owner := uuid.New()
	account := uuid.New()
	now := time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

	d := validDraft()
	d.Amount = "$12.50"
	d.AccountID = account.String()
	d.Account = "Cash"

	rec, err := Finalize(d, owner, now)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if rec.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if rec.OwnerID != owner {
		t.Errorf("OwnerID = %v, want %v", rec.OwnerID, owner)
	}
	if !rec.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("Amount = %s, want 12.50", rec.Amount)
	}
	if !rec.SignedAmount().Equal(decimal.RequireFromString("-12.50")) {
		t.Errorf("SignedAmount = %s, want -12.50", rec.SignedAmount())
	}
	if rec.AccountID == nil || *rec.AccountID != account {
		t.Errorf("AccountID = %v, want %v", rec.AccountID, account)
	}
	if rec.TransferToID != nil {
		t.Errorf("TransferToID = %v, want nil", rec.TransferToID)
	}
	if rec.Date != today || !rec.CreatedAt.Equal(now) {
		t.Errorf("Date/CreatedAt = %v/%v, want %v/%v", rec.Date, rec.CreatedAt, today, now)
	}
}

func TestFinalizeRejectsInvalid(t *testing.T) {
	var verr *ValidationError
	if _, err := Finalize(New(today), uuid.New(), time.Now()); !errors.As(err, &verr) {
		t.Errorf("Finalize() error = %v, want *ValidationError", err)
	}
}

func TestDraftJSON(t *testing.T) {
	d, err := Apply(validDraft(), Change{Field: FieldDescription, Value: "tacos"})
	if err != nil {
		t.Fatal(err)
	}
	d, err = Apply(d, Change{Field: FieldAmount, Value: "8"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["date"] != "2026-10-19" {
		t.Errorf("date = %v, want 2026-10-19", raw["date"])
	}
	touched, _ := raw["touched"].([]any)
	if len(touched) != 2 || touched[0] != "amount" || touched[1] != "description" {
		t.Errorf("touched = %v, want [amount description]", raw["touched"])
	}

	var back Draft
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != d {
		t.Errorf("decoded %+v, want %+v", back, d)
	}
}

func TestParseField(t *testing.T) {
	if f, err := ParseField("Transfer_To"); err != nil || f != FieldTransferTo {
		t.Errorf("ParseField() = %v, %v; want %v", f, err, FieldTransferTo)
	}
	if _, err := ParseField("colour"); err == nil {
		t.Error("ParseField(colour) error = nil, want error")
	}
}
