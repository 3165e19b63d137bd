// Package ledger records each identity's first appearance of the day
// exactly once. It keeps a small in-memory set per date for O(1)
// duplicate checks; the durable append-only store remains the source
// of truth and the set is always rebuildable from it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrPersistFailure indicates a record could not be written durably.
// The in-memory state is left untouched so a retry can succeed.
var ErrPersistFailure = errors.New("attendance persist failure")

// DateFormat is the calendar-date bucket format for attendance records.
const DateFormat = "2006-01-02"

// Record is a single attendance event. Append-only: one record per
// identity per date, never mutated or deleted.
type Record struct {
	StudentID   string
	DisplayName string
	Timestamp   time.Time
	Date        string // YYYY-MM-DD, derived from Timestamp
}

// Store is the durable backing store for attendance records.
type Store interface {
	// Append durably writes a single record. Must be atomic: either
	// the whole record is stored or nothing is.
	Append(ctx context.Context, rec Record) error
	// ListByDate returns all records for a date, in any order.
	ListByDate(ctx context.Context, date string) ([]Record, error)
	// IdentitiesByDate returns the set of student IDs recorded on a date.
	IdentitiesByDate(ctx context.Context, date string) ([]string, error)
	// Dates returns all dates that have at least one record.
	Dates(ctx context.Context) ([]string, error)
}

// Ledger enforces the at-most-once-per-date attendance invariant.
type Ledger struct {
	store Store

	mu     sync.Mutex
	marked map[string]map[string]struct{} // date -> set of student IDs
}

// New creates a ledger over the given store. Call Warm before a
// capture session to rebuild today's set from durable records.
func New(store Store) *Ledger {
	return &Ledger{
		store:  store,
		marked: make(map[string]map[string]struct{}),
	}
}

// Warm rebuilds the in-memory set for a date from the store, so a
// restarted process does not re-record students already marked today.
func (l *Ledger) Warm(ctx context.Context, date string) error {
	ids, err := l.store.IdentitiesByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("rebuilding marked set for %s: %w", date, err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	l.mu.Lock()
	l.marked[date] = set
	l.mu.Unlock()
	return nil
}

// Mark records attendance for a student. Returns false with a nil
// error when the student already has a record for the date of `at` —
// an ordinary outcome, not a fault. The date bucket comes from `at`,
// not from wall-clock now, so records near midnight land on the right
// day and tests can inject timestamps.
//
// On a persist failure the in-memory set is left unchanged and the
// error wraps ErrPersistFailure; a later retry for the same student
// is not suppressed by a phantom "already marked" state.
func (l *Ledger) Mark(ctx context.Context, studentID, displayName string, at time.Time) (bool, error) {
	date := at.Format(DateFormat)

	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.marked[date]
	if !ok {
		// First mark for this date opens a fresh set; previous days
		// are left intact.
		set = make(map[string]struct{})
		l.marked[date] = set
	}

	if _, already := set[studentID]; already {
		return false, nil
	}

	rec := Record{
		StudentID:   studentID,
		DisplayName: displayName,
		Timestamp:   at,
		Date:        date,
	}
	if err := l.store.Append(ctx, rec); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistFailure, err)
	}

	set[studentID] = struct{}{}
	return true, nil
}

// Snapshot returns the records for a date ordered by timestamp ascending.
func (l *Ledger) Snapshot(ctx context.Context, date string) ([]Record, error) {
	records, err := l.store.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", date, err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// Dates returns all dates with at least one record.
func (l *Ledger) Dates(ctx context.Context) ([]string, error) {
	dates, err := l.store.Dates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing dates: %w", err)
	}
	sort.Strings(dates)
	return dates, nil
}

// History returns the student's records over the `days` most recent
// recorded dates, newest date first. days <= 0 searches the whole
// ledger. A student with no records yields an empty history, not an
// error.
func (l *Ledger) History(ctx context.Context, studentID string, days int) ([]Record, error) {
	dates, err := l.store.Dates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing dates: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if days > 0 && len(dates) > days {
		dates = dates[:days]
	}

	var history []Record
	for _, date := range dates {
		records, err := l.store.ListByDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("listing records for %s: %w", date, err)
		}
		for _, rec := range records {
			if rec.StudentID == studentID {
				history = append(history, rec)
			}
		}
	}
	return history, nil
}

// Stats summarizes the whole ledger for reporting.
type Stats struct {
	TotalDays      int
	TotalRecords   int
	UniqueStudents int
}

// ComputeStats walks every recorded date and aggregates totals.
func (l *Ledger) ComputeStats(ctx context.Context) (Stats, error) {
	dates, err := l.store.Dates(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing dates: %w", err)
	}

	stats := Stats{TotalDays: len(dates)}
	unique := make(map[string]struct{})
	for _, date := range dates {
		records, err := l.store.ListByDate(ctx, date)
		if err != nil {
			return Stats{}, fmt.Errorf("listing records for %s: %w", date, err)
		}
		stats.TotalRecords += len(records)
		for _, rec := range records {
			unique[rec.StudentID] = struct{}{}
		}
	}
	stats.UniqueStudents = len(unique)
	return stats, nil
}
