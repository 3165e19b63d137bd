package csvdir

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

func testRecord(id, name, date string, clock string) ledger.Record {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, time.Local)
	if err != nil {
		panic(err)
	}
	return ledger.Record{StudentID: id, DisplayName: name, Date: date, Timestamp: ts}
}

func TestAppendAndListByDate(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	records := []ledger.Record{
		testRecord("alice-1", "Alice Nováková", "2026-08-23", "08:01:30"),
		testRecord("bob-2", "Bob", "2026-08-23", "08:05:12"),
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.ListByDate(ctx, "2026-08-23")
	if err != nil {
		t.Fatalf("ListByDate failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].StudentID != "alice-1" || got[0].DisplayName != "Alice Nováková" {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if !got[1].Timestamp.Equal(records[1].Timestamp) {
		t.Errorf("timestamp round-trip mismatch: %v != %v", got[1].Timestamp, records[1].Timestamp)
	}
}

func TestListByDate_MissingFile(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, err := store.ListByDate(context.Background(), "2026-01-01")
	if err != nil {
		t.Fatalf("missing day must not be an error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestAppend_WritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Append(ctx, testRecord("alice-1", "Alice", "2026-08-23", "08:00:00")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, testRecord("bob-2", "Bob", "2026-08-23", "08:01:00")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "attendance_2026-08-23.csv"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	content := string(raw)
	if strings.Count(content, "ID,Name,Date,Time") != 1 {
		t.Errorf("expected exactly one header row:\n%s", content)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 3 {
		t.Errorf("expected header plus 2 records, got %d lines", len(lines))
	}
}

func TestAppend_HeaderForPreexistingEmptyFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// The file exists but holds nothing, e.g. another process created
	// it a moment ago and has not written its header yet.
	path := filepath.Join(dir, "attendance_2026-08-23.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("creating empty file: %v", err)
	}

	if err := store.Append(context.Background(), testRecord("alice-1", "Alice", "2026-08-23", "08:00:00")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if !strings.HasPrefix(string(raw), "ID,Name,Date,Time") {
		t.Errorf("expected a header in the empty file:\n%s", raw)
	}
}

func TestIdentitiesByDate_Distinct(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	for _, rec := range []ledger.Record{
		testRecord("alice-1", "Alice", "2026-08-23", "08:00:00"),
		testRecord("alice-1", "Alice", "2026-08-23", "12:00:00"),
		testRecord("bob-2", "Bob", "2026-08-23", "09:00:00"),
	} {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	ids, err := store.IdentitiesByDate(ctx, "2026-08-23")
	if err != nil {
		t.Fatalf("IdentitiesByDate failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 distinct students, got %d: %v", len(ids), ids)
	}
}

func TestDates_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	for _, date := range []string{"2026-08-23", "2026-08-21", "2026-08-22"} {
		if err := store.Append(ctx, testRecord("alice-1", "Alice", date, "08:00:00")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	// Stray files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "attendance_garbage.csv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dates, err := store.Dates(ctx)
	if err != nil {
		t.Fatalf("Dates failed: %v", err)
	}
	want := []string{"2026-08-21", "2026-08-22", "2026-08-23"}
	if len(dates) != len(want) {
		t.Fatalf("expected %v, got %v", want, dates)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], dates[i])
		}
	}
}
