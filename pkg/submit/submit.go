// Package submit turns a validated draft into a stored record.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/draft"
)

// ErrInFlight is returned when the owner already has a submission pending.
var ErrInFlight = errors.New("a submission is already in progress")

// Notifications shown to the user when an insert fails.
const (
	NoticeConstraint      = "The transaction was rejected. Check the amount, category and account and try again."
	NoticeUnauthenticated = "Your session has expired. Please sign in again."
	NoticeUnavailable     = "The ledger is unavailable right now. Please try again in a moment."
	NoticeGeneric         = "Failed to add transaction. Please try again."
)

// Failure is returned when the insert fails. Draft is the draft that was
// submitted, unchanged, so the input surface can keep it on screen.
type Failure struct {
	Draft        draft.Draft
	Notification string
	Err          error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("submitting transaction: %v", f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Submitter inserts drafts, one at a time per owner. It never retries.
type Submitter struct {
	inserter api.Inserter
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// New returns a submitter writing to inserter.
func New(inserter api.Inserter, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		inserter: inserter,
		logger:   logger.With("component", "submit"),
		now:      time.Now,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// Submit validates d and inserts it as a record owned by owner.
//
// Invalid drafts yield a *draft.ValidationError without reaching the store.
// A second call for the same owner while one is pending yields ErrInFlight.
// Insert failures yield a *Failure wrapping the store error.
func (s *Submitter) Submit(ctx context.Context, owner uuid.UUID, d draft.Draft) (api.Record, error) {
	if owner == uuid.Nil {
		return api.Record{}, &Failure{Draft: d, Notification: NoticeUnauthenticated, Err: api.ErrUnauthenticated}
	}

	rec, err := draft.Finalize(d, owner, s.now())
	if err != nil {
		return api.Record{}, err
	}

	if !s.acquire(owner) {
		return api.Record{}, ErrInFlight
	}
	defer s.release(owner)

	if err := s.inserter.Insert(ctx, rec); err != nil {
		s.logger.Warn("insert failed",
			"owner_id", owner,
			"record_id", rec.ID,
			"error", err,
		)
		return api.Record{}, &Failure{Draft: d, Notification: notificationFor(err), Err: err}
	}

	s.logger.Info("transaction recorded",
		"owner_id", owner,
		"record_id", rec.ID,
		"type", rec.Type,
		"category", rec.Category,
	)
	return rec, nil
}

func (s *Submitter) acquire(owner uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[owner]; busy {
		return false
	}
	s.inFlight[owner] = struct{}{}
	return true
}

func (s *Submitter) release(owner uuid.UUID) {
	s.mu.Lock()
	delete(s.inFlight, owner)
	s.mu.Unlock()
}

func notificationFor(err error) string {
	switch {
	case errors.Is(err, api.ErrConstraint):
		return NoticeConstraint
	case errors.Is(err, api.ErrUnauthenticated):
		return NoticeUnauthenticated
	case errors.Is(err, api.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return NoticeUnavailable
	default:
		return NoticeGeneric
	}
}
