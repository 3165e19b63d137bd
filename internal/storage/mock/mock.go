// Package mock provides in-memory implementations of the roster and
// ledger storage interfaces for testing, with error injection.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/roster"
)

// RosterRepo is an in-memory roster.Repository.
type RosterRepo struct {
	mu         sync.RWMutex
	identities []roster.Identity

	// Error injection
	LoadError   error
	CreateError error
	AppendError error
}

// NewRosterRepo creates an empty in-memory roster repository.
func NewRosterRepo() *RosterRepo {
	return &RosterRepo{}
}

// Seed adds identities directly, bypassing error injection.
func (m *RosterRepo) Seed(identities ...roster.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = append(m.identities, identities...)
}

// LoadIdentities returns a copy of all seeded identities.
func (m *RosterRepo) LoadIdentities(ctx context.Context) ([]roster.Identity, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]roster.Identity, len(m.identities))
	copy(out, m.identities)
	return out, nil
}

// CreateStudent stores a new identity.
func (m *RosterRepo) CreateStudent(ctx context.Context, id roster.Identity) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = append(m.identities, id)
	return nil
}

// AppendEncoding adds an encoding to an existing identity.
func (m *RosterRepo) AppendEncoding(ctx context.Context, identityID string, encoding []float32) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.identities {
		if m.identities[i].ID == identityID {
			m.identities[i].Encodings = append(m.identities[i].Encodings, encoding)
			return nil
		}
	}
	return nil
}

// LedgerStore is an in-memory ledger.Store.
type LedgerStore struct {
	mu      sync.RWMutex
	records []ledger.Record

	// Error injection. AppendError is consumed FailAppends times,
	// allowing "fail once, then succeed" scenarios.
	AppendError error
	FailAppends int // 0 means fail every Append while AppendError is set
	ListError   error
	DatesError  error

	appendCalls int
}

// NewLedgerStore creates an empty in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

// Append stores a record, honoring injected errors.
func (m *LedgerStore) Append(ctx context.Context, rec ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendCalls++
	if m.AppendError != nil {
		if m.FailAppends == 0 || m.appendCalls <= m.FailAppends {
			return m.AppendError
		}
	}

	m.records = append(m.records, rec)
	return nil
}

// ListByDate returns all records for a date.
func (m *LedgerStore) ListByDate(ctx context.Context, date string) ([]ledger.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Record
	for _, rec := range m.records {
		if rec.Date == date {
			out = append(out, rec)
		}
	}
	return out, nil
}

// IdentitiesByDate returns the distinct student IDs recorded on a date.
func (m *LedgerStore) IdentitiesByDate(ctx context.Context, date string) ([]string, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range m.records {
		if rec.Date != date {
			continue
		}
		if _, ok := seen[rec.StudentID]; ok {
			continue
		}
		seen[rec.StudentID] = struct{}{}
		out = append(out, rec.StudentID)
	}
	return out, nil
}

// Dates returns all dates with at least one record, sorted.
func (m *LedgerStore) Dates(ctx context.Context) ([]string, error) {
	if m.DatesError != nil {
		return nil, m.DatesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range m.records {
		if _, ok := seen[rec.Date]; ok {
			continue
		}
		seen[rec.Date] = struct{}{}
		out = append(out, rec.Date)
	}
	sort.Strings(out)
	return out, nil
}

// Records returns a copy of everything stored, for assertions.
func (m *LedgerStore) Records() []ledger.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Record, len(m.records))
	copy(out, m.records)
	return out
}

// AppendCalls returns how many times Append was invoked.
func (m *LedgerStore) AppendCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appendCalls
}
