// Package draft holds the in-progress transaction that input surfaces edit
// before submission.
//
// A Draft is a value. Every operation returns a new Draft and leaves its
// argument untouched, so callers can keep the previous draft around to
// restore it after a failed submission.
package draft

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/money"
)

// Draft is a transaction being composed.
type Draft struct {
	// Amount is the amount text without currency symbol; empty when unknown.
	Amount   string              `json:"amount"`
	Type     api.TransactionType `json:"type"`
	Category string              `json:"category"`
	// Account is the account label; AccountID is set when the label was
	// resolved against a known account.
	Account      string     `json:"account,omitempty"`
	AccountID    string     `json:"account_id,omitempty"`
	TransferToID string     `json:"transfer_to_id,omitempty"`
	Date         civil.Date `json:"date"`
	Description  string     `json:"description"`
	// Touched is the set of fields edited by hand.
	Touched Field `json:"touched"`
}

// New returns the empty draft an input surface starts from.
func New(today civil.Date) Draft {
	return Draft{
		Type: api.TypeExpense,
		Date: today,
	}
}

// Change replaces one field of a draft.
type Change struct {
	Field Field
	Value string
	// Label is the display name sent along with an account id.
	Label string
}

// Apply returns a copy of d with the change applied and the field marked as
// touched. Values that cannot be represented in the field yield an error and
// d unchanged.
func Apply(d Draft, c Change) (Draft, error) {
	next := d
	value := strings.TrimSpace(c.Value)

	switch c.Field {
	case FieldAmount:
		next.Amount = value
	case FieldType:
		t, ok := api.ParseTransactionType(value)
		if !ok {
			return d, fmt.Errorf("unknown transaction type %q", c.Value)
		}
		next.Type = t
		if t != api.TypeTransfer {
			next.TransferToID = ""
		}
	case FieldCategory:
		next.Category = value
	case FieldAccount:
		if id, err := uuid.Parse(value); err == nil {
			next.AccountID = id.String()
			next.Account = strings.TrimSpace(c.Label)
		} else {
			next.AccountID = ""
			next.Account = value
		}
	case FieldTransferTo:
		if value != "" {
			id, err := uuid.Parse(value)
			if err != nil {
				return d, fmt.Errorf("parsing transfer account: %w", err)
			}
			value = id.String()
		}
		next.TransferToID = value
	case FieldDate:
		date, err := civil.ParseDate(value)
		if err != nil {
			return d, fmt.Errorf("parsing date: %w", err)
		}
		next.Date = date
	case FieldDescription:
		next.Description = value
	default:
		return d, fmt.Errorf("unknown field %v", c.Field)
	}

	next.Touched |= c.Field
	return next, nil
}

// Reparse merges a freshly parsed draft into current. Fields the user edited
// by hand keep their value from current; the rest come from parsed.
func Reparse(current, parsed Draft) Draft {
	next := parsed
	next.Touched = current.Touched

	if current.Touched.Has(FieldAmount) {
		next.Amount = current.Amount
	}
	if current.Touched.Has(FieldType) {
		next.Type = current.Type
	}
	if current.Touched.Has(FieldCategory) {
		next.Category = current.Category
	}
	if current.Touched.Has(FieldAccount) {
		next.Account = current.Account
		next.AccountID = current.AccountID
	}
	if current.Touched.Has(FieldTransferTo) || next.TransferToID == "" {
		next.TransferToID = current.TransferToID
	}
	if current.Touched.Has(FieldDate) {
		next.Date = current.Date
	}
	if current.Touched.Has(FieldDescription) {
		next.Description = current.Description
	}
	return next
}

// Problem describes one invalid field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that blocks submission.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		fields = append(fields, p.Field)
	}
	return "please fill in all required fields: " + strings.Join(fields, ", ")
}

func (e *ValidationError) add(field Field, msg string) {
	e.Problems = append(e.Problems, Problem{Field: field.String(), Message: msg})
}

// Validate reports the fields that must be fixed before d can be submitted.
// It returns nil or a *ValidationError.
func Validate(d Draft) error {
	verr := &ValidationError{}

	if amount, err := money.ParseAmount(d.Amount); err != nil {
		switch {
		case errors.Is(err, money.ErrEmpty):
			verr.add(FieldAmount, "amount is required")
		case errors.Is(err, money.ErrTooLarge):
			verr.add(FieldAmount, "amount is too large")
		default:
			verr.add(FieldAmount, "amount must be a number")
		}
	} else if amount.IsZero() {
		verr.add(FieldAmount, "amount must be greater than zero")
	}

	if _, ok := api.ParseTransactionType(string(d.Type)); !ok {
		verr.add(FieldType, "type must be income, expense or transfer")
	}

	if strings.TrimSpace(d.Category) == "" {
		verr.add(FieldCategory, "category is required")
	}

	if d.AccountID != "" {
		if _, err := uuid.Parse(d.AccountID); err != nil {
			verr.add(FieldAccount, "account is not a known account")
		}
	}

	if d.Type == api.TypeTransfer {
		switch {
		case d.AccountID == "":
			verr.add(FieldAccount, "a transfer needs a source account")
		case d.TransferToID == "":
			verr.add(FieldTransferTo, "a transfer needs a destination account")
		case d.TransferToID == d.AccountID:
			verr.add(FieldTransferTo, "source and destination accounts must differ")
		default:
			if _, err := uuid.Parse(d.TransferToID); err != nil {
				verr.add(FieldTransferTo, "destination is not a known account")
			}
		}
	}

	if d.Date.IsZero() || !d.Date.IsValid() {
		verr.add(FieldDate, "date is required")
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// Finalize validates d and converts it into a record owned by owner.
func Finalize(d Draft, owner uuid.UUID, now time.Time) (api.Record, error) {
	if err := Validate(d); err != nil {
		return api.Record{}, err
	}

	amount, err := money.ParseAmount(d.Amount)
	if err != nil {
		return api.Record{}, err
	}

	rec := api.Record{
		ID:          uuid.New(),
		OwnerID:     owner,
		Description: strings.TrimSpace(d.Description),
		Amount:      amount,
		Category:    strings.TrimSpace(d.Category),
		Type:        d.Type,
		Account:     d.Account,
		Date:        d.Date,
		CreatedAt:   now.UTC(),
	}
	if d.AccountID != "" {
		id := uuid.MustParse(d.AccountID)
		rec.AccountID = &id
	}
	if d.Type == api.TypeTransfer {
		to, err := uuid.Parse(d.TransferToID)
		if err != nil {
			return api.Record{}, fmt.Errorf("parsing transfer account: %w", err)
		}
		rec.TransferToID = &to
	}
	return rec, nil
}
