package submit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/draft"
	"github.com/ArionMiles/pocketledger/pkg/logging"
)

type fakeInserter struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	started chan struct{}
	records []api.Record
}

func (f *fakeInserter) Insert(ctx context.Context, rec api.Record) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func validDraft() draft.Draft {
	d := draft.New(civil.Date{Year: 2026, Month: time.October, Day: 19})
	d.Amount = "50"
	d.Category = "Groceries"
	d.Description = "Bought groceries"
	return d
}

func TestSubmit(t *testing.T) {
	ins := &fakeInserter{}
	s := New(ins, logging.Discard())
	owner := uuid.New()

	rec, err := s.Submit(context.Background(), owner, validDraft())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if rec.OwnerID != owner || rec.Category != "Groceries" {
		t.Errorf("record = %+v", rec)
	}
	if len(ins.records) != 1 || ins.records[0].ID != rec.ID {
		t.Errorf("inserted %+v, want the returned record", ins.records)
	}
}

func TestSubmitValidation(t *testing.T) {
	ins := &fakeInserter{}
	s := New(ins, logging.Discard())

	d := validDraft()
	d.Amount = ""

	_, err := s.Submit(context.Background(), uuid.New(), d)
	var verr *draft.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() error = %v, want *draft.ValidationError", err)
	}
	if len(ins.records) != 0 {
		t.Error("invalid draft reached the store")
	}
}

func TestSubmitFailurePreservesDraft(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		notice string
	}{
		{name: "constraint", err: api.ErrConstraint, notice: NoticeConstraint},
		{name: "unauthenticated", err: api.ErrUnauthenticated, notice: NoticeUnauthenticated},
		{name: "unavailable", err: api.ErrUnavailable, notice: NoticeUnavailable},
		{name: "other", err: errors.New("boom"), notice: NoticeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeInserter{err: tt.err}, logging.Discard())
			d := validDraft()

			_, err := s.Submit(context.Background(), uuid.New(), d)

			var failure *Failure
			if !errors.As(err, &failure) {
				t.Fatalf("Submit() error = %v, want *Failure", err)
			}
			if failure.Draft != d {
				t.Errorf("failure draft = %+v, want %+v", failure.Draft, d)
			}
			if failure.Notification != tt.notice {
				t.Errorf("Notification = %q, want %q", failure.Notification, tt.notice)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("errors.Is(err, %v) = false", tt.err)
			}
		})
	}
}

func TestSubmitWithoutOwner(t *testing.T) {
	s := New(&fakeInserter{}, logging.Discard())
	if _, err := s.Submit(context.Background(), uuid.Nil, validDraft()); !errors.Is(err, api.ErrUnauthenticated) {
		t.Errorf("Submit() error = %v, want ErrUnauthenticated", err)
	}
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	ins := &fakeInserter{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(ins, logging.Discard())
	owner := uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), owner, validDraft())
		done <- err
	}()
	<-ins.started

	if _, err := s.Submit(context.Background(), owner, validDraft()); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Submit() error = %v, want ErrInFlight", err)
	}

	ins.started = nil
	other := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), uuid.New(), validDraft())
		other <- err
	}()

	close(ins.block)
	if err := <-done; err != nil {
		t.Errorf("first Submit() error = %v", err)
	}
	if err := <-other; err != nil {
		t.Errorf("other owner Submit() error = %v", err)
	}

	if _, err := s.Submit(context.Background(), owner, validDraft()); err != nil {
		t.Errorf("Submit() after completion error = %v", err)
	}
	if len(ins.records) != 3 {
		t.Errorf("inserted %d records, want 3", len(ins.records))
	}
}
