// Package api defines the core interfaces and data structures for pocketledger.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors reported by stores. Callers test for them with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConstraint      = errors.New("constraint violation")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrUnavailable     = errors.New("store unavailable")
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// ParseTransactionType parses a case-insensitive transaction type.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return t, true
	default:
		return "", false
	}
}

// DefaultCategories is the fixed category list offered on every input surface.
var DefaultCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Travel",
	"Groceries",
	"Salary",
	"Freelance",
	"Investment",
	"Gift",
	"Other",
}

// Record is a finalized transaction as accepted by the store.
//
// Amount is always a non-negative magnitude. The direction lives in Type and
// is applied by SignedAmount and SignedFor.
type Record struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Type        TransactionType `json:"type"`
	// Account is the free-text account label, set even when AccountID is not.
	Account      string     `json:"account,omitempty"`
	AccountID    *uuid.UUID `json:"account_id,omitempty"`
	TransferToID *uuid.UUID `json:"transfer_to_id,omitempty"`
	Date         civil.Date `json:"date"`
	CreatedAt    time.Time  `json:"created_at"`
	ExportedAt   *time.Time `json:"exported_at,omitempty"`
}

// SignedAmount returns the amount with the sign implied by the type.
// Transfers move money between two accounts and net to zero.
func (r Record) SignedAmount() decimal.Decimal {
	switch r.Type {
	case TypeIncome:
		return r.Amount.Abs()
	case TypeExpense:
		return r.Amount.Abs().Neg()
	default:
		return decimal.Zero
	}
}

// SignedFor returns the effect of the record on the balance of one account.
func (r Record) SignedFor(accountID uuid.UUID) decimal.Decimal {
	amount := r.Amount.Abs()
	switch {
	case r.Type == TypeTransfer && r.TransferToID != nil && *r.TransferToID == accountID:
		return amount
	case r.AccountID == nil || *r.AccountID != accountID:
		return decimal.Zero
	case r.Type == TypeTransfer:
		return amount.Neg()
	default:
		return r.SignedAmount()
	}
}

// Account is a money container owned by a user.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        uuid.UUID       `json:"owner_id"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RecordFilter selects records for one owner. Zero dates leave the range open
// and a zero Limit returns every match.
type RecordFilter struct {
	OwnerID uuid.UUID
	From    civil.Date
	To      civil.Date
	Limit   int
}

// Matches reports whether r passes the owner and date constraints of f.
func (f RecordFilter) Matches(r Record) bool {
	if r.OwnerID != f.OwnerID {
		return false
	}
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	return true
}

// Inserter accepts one finalized record.
type Inserter interface {
	Insert(ctx context.Context, rec Record) error
}

// RecordQuery returns an owner's records, newest first.
type RecordQuery interface {
	Records(ctx context.Context, filter RecordFilter) ([]Record, error)
}

// Lookup supplies the reference lists used to resolve shorthand markers.
type Lookup interface {
	// Accounts returns the owner's active accounts.
	Accounts(ctx context.Context, ownerID uuid.UUID) ([]Account, error)
	// Categories returns the categories the owner has used, beyond the defaults.
	Categories(ctx context.Context, ownerID uuid.UUID) ([]string, error)
}

// Reader streams records from a source into out.
// Implementations close out when done. Record IDs received on ack have been
// written successfully by the other end of the pipeline.
type Reader interface {
	Read(ctx context.Context, out chan<- *Record, ack <-chan uuid.UUID) error
}

// Writer consumes records from a channel and writes them to a destination.
// Successfully written record IDs are sent to ack.
type Writer interface {
	Write(ctx context.Context, in <-chan *Record, ack chan<- uuid.UUID) error
}
