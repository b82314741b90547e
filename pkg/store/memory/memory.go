// Package memory is an in-process store for development and tests.
// Data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
)

// Store keeps records and accounts in maps and is safe for concurrent use.
// Values are copied on the way in and out.
type Store struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]api.Record
	accounts map[uuid.UUID]api.Account
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:  make(map[uuid.UUID]api.Record),
		accounts: make(map[uuid.UUID]api.Account),
		now:      time.Now,
	}
}

// Insert stores rec. Referenced accounts must belong to the record's owner.
func (s *Store) Insert(ctx context.Context, rec api.Record) error {
	if rec.OwnerID == uuid.Nil {
		return fmt.Errorf("inserting record: %w", api.ErrUnauthenticated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists || rec.ID == uuid.Nil {
		return fmt.Errorf("inserting record %s: duplicate id: %w", rec.ID, api.ErrConstraint)
	}
	for _, ref := range []*uuid.UUID{rec.AccountID, rec.TransferToID} {
		if ref == nil {
			continue
		}
		if a, ok := s.accounts[*ref]; !ok || a.OwnerID != rec.OwnerID {
			return fmt.Errorf("inserting record: unknown account %s: %w", *ref, api.ErrConstraint)
		}
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

// Records returns the owner's records matching filter, newest first.
func (s *Store) Records(ctx context.Context, filter api.RecordFilter) ([]api.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Record
	for _, r := range s.records {
		if filter.Matches(r) {
			out = append(out, copyRecord(r))
		}
	}
	sortNewestFirst(out)

	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Accounts returns the owner's active accounts ordered by name.
func (s *Store) Accounts(ctx context.Context, ownerID uuid.UUID) ([]api.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID && a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Categories returns the distinct categories the owner has used, sorted.
func (s *Store) Categories(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, r := range s.records {
		if r.OwnerID != ownerID || r.Category == "" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		out = append(out, r.Category)
	}
	sort.Strings(out)
	return out, nil
}

// CreateAccount stores a new account, assigning an id when none is set.
// Names are unique per owner, ignoring case.
func (s *Store) CreateAccount(ctx context.Context, a api.Account) (api.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.OwnerID == uuid.Nil {
		return api.Account{}, fmt.Errorf("creating account: %w", api.ErrUnauthenticated)
	}
	if a.Name == "" {
		return api.Account{}, fmt.Errorf("creating account: name is required: %w", api.ErrConstraint)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.OwnerID == a.OwnerID && strings.EqualFold(existing.Name, a.Name) {
			return api.Account{}, fmt.Errorf("creating account %q: name in use: %w", a.Name, api.ErrConstraint)
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.accounts[a.ID] = a
	return a, nil
}

// Pending returns up to limit records that have not been exported, oldest
// first. A limit of zero returns all of them.
func (s *Store) Pending(ctx context.Context, limit int) ([]api.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Record
	for _, r := range s.records {
		if r.ExportedAt == nil {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// MarkExported stamps the given records as exported. Unknown ids are skipped.
func (s *Store) MarkExported(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now().UTC()
	for _, id := range ids {
		r, ok := s.records[id]
		if !ok {
			continue
		}
		r.ExportedAt = &at
		s.records[id] = r
	}
	return nil
}

func sortNewestFirst(records []api.Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// copyRecord detaches the pointer fields of r.
func copyRecord(r api.Record) api.Record {
	if r.AccountID != nil {
		id := *r.AccountID
		r.AccountID = &id
	}
	if r.TransferToID != nil {
		id := *r.TransferToID
		r.TransferToID = &id
	}
	if r.ExportedAt != nil {
		at := *r.ExportedAt
		r.ExportedAt = &at
	}
	return r
}
