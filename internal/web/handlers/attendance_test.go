package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/storage/mock"
)

func seededLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New(mock.NewLedgerStore())
	ctx := context.Background()

	day := time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC)
	marks := []struct {
		id, name string
		at       time.Time
	}{
		{"alice-1", "Alice", day},
		{"bob-2", "Bob", day.Add(10 * time.Minute)},
		{"alice-1", "Alice", day.Add(25 * time.Hour)}, // next day
	}
	for _, m := range marks {
		if _, err := l.Mark(ctx, m.id, m.name, m.at); err != nil {
			t.Fatalf("seeding ledger: %v", err)
		}
	}
	return l
}

func attendanceRouter(l *ledger.Ledger) *chi.Mux {
	h := NewAttendanceHandler(l)
	r := chi.NewRouter()
	r.Get("/attendance", h.ListDates)
	r.Get("/attendance/stats", h.Stats)
	r.Get("/attendance/{date}", h.ListByDate)
	r.Get("/attendance/{date}/export", h.Export)
	return r
}

func TestAttendanceListByDate(t *testing.T) {
	router := attendanceRouter(seededLedger(t))

	req := httptest.NewRequest("GET", "/attendance/2026-08-23", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var resp struct {
		Date    string           `json:"date"`
		Count   int              `json:"count"`
		Records []RecordResponse `json:"records"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 records, got %d", resp.Count)
	}
	if resp.Records[0].StudentID != "alice-1" {
		t.Errorf("expected alice-1 first (earliest), got %s", resp.Records[0].StudentID)
	}
	if resp.Records[0].Time != "08:00:00" {
		t.Errorf("expected time 08:00:00, got %s", resp.Records[0].Time)
	}
}

func TestAttendanceListByDate_BadDate(t *testing.T) {
	router := attendanceRouter(seededLedger(t))

	req := httptest.NewRequest("GET", "/attendance/garbage", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestAttendanceListByDate_EmptyDay(t *testing.T) {
	router := attendanceRouter(seededLedger(t))

	req := httptest.NewRequest("GET", "/attendance/2026-01-01", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("expected 0 records, got %d", resp.Count)
	}
}

func TestAttendanceListDates(t *testing.T) {
	router := attendanceRouter(seededLedger(t))

	req := httptest.NewRequest("GET", "/attendance", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	var resp struct {
		Dates []string `json:"dates"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Dates) != 2 {
		t.Errorf("expected 2 dates, got %v", resp.Dates)
	}
}

func TestAttendanceExport_CSV(t *testing.T) {
	router := attendanceRouter(seededLedger(t))

	req := httptest.NewRequest("GET", "/attendance/2026-08-23/export", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected Content-Type 'text/csv', got '%s'", ct)
	}
	if cd := recorder.Header().Get("Content-Disposition"); !strings.Contains(cd, "attendance_2026-08-23.csv") {
		t.Errorf("unexpected Content-Disposition: %s", cd)
	}

	lines := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ID,Name,Date,Time") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "alice-1") {
		t.Errorf("expected alice-1 in first row: %s", lines[1])
	}
}

func TestAttendanceStats(t *testing.T) {
	router := attendanceRouter(seededLedger(t))

	req := httptest.NewRequest("GET", "/attendance/stats", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	var resp map[string]int
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["total_days"] != 2 {
		t.Errorf("expected 2 days, got %d", resp["total_days"])
	}
	if resp["total_records"] != 3 {
		t.Errorf("expected 3 records, got %d", resp["total_records"])
	}
	if resp["unique_students"] != 2 {
		t.Errorf("expected 2 unique students, got %d", resp["unique_students"])
	}
}
