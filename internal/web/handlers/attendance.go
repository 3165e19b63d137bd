package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

// AttendanceHandler serves the recorded attendance ledger.
type AttendanceHandler struct {
	ledger *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(l *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: l}
}

// RecordResponse is a single attendance record.
type RecordResponse struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	RecordedAt string `json:"recorded_at"`
}

func toRecordResponse(rec ledger.Record) RecordResponse {
	return RecordResponse{
		StudentID:  rec.StudentID,
		Name:       rec.DisplayName,
		Date:       rec.Date,
		Time:       rec.Timestamp.Format("15:04:05"),
		RecordedAt: rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ListDates returns every date with at least one record.
func (h *AttendanceHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.ledger.Dates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance dates")
		return
	}
	if dates == nil {
		dates = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

// ListByDate returns the records for one date, ordered by time.
func (h *AttendanceHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.ledger.Snapshot(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	resp := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toRecordResponse(rec))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"count":   len(resp),
		"records": resp,
	})
}

// Export downloads one date's records as a CSV file.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.ledger.Snapshot(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="attendance_%s.csv"`, date))

	cw := csv.NewWriter(w)
	cw.Write([]string{"ID", "Name", "Date", "Time"})
	for _, rec := range records {
		cw.Write([]string{rec.StudentID, rec.DisplayName, rec.Date, rec.Timestamp.Format("15:04:05")})
	}
	cw.Flush()
}

// Stats aggregates totals over the whole ledger.
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.ComputeStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"total_days":      stats.TotalDays,
		"total_records":   stats.TotalRecords,
		"unique_students": stats.UniqueStudents,
	})
}
