package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
// The UNIQUE (student_id, date) constraint backstops the in-memory
// deduplication, so a concurrent writer can never double-mark a day.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Append records a student for a date. Re-appending the same student
// and date is a no-op thanks to the unique constraint.
func (r *AttendanceRepository) Append(ctx context.Context, rec ledger.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (student_id, display_name, date, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date) DO NOTHING
	`, rec.StudentID, rec.DisplayName, rec.Date, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// ListByDate returns all records for a date.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date string) ([]ledger.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id, display_name, date, recorded_at
		FROM attendance
		WHERE date = $1
		ORDER BY recorded_at
	`, date)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var (
			rec ledger.Record
			day time.Time
		)
		if err := rows.Scan(&rec.StudentID, &rec.DisplayName, &day, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan attendance row: %w", err)
		}
		rec.Date = day.Format(ledger.DateFormat)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance rows: %w", err)
	}
	return records, nil
}

// IdentitiesByDate returns the distinct student IDs recorded on a date.
func (r *AttendanceRepository) IdentitiesByDate(ctx context.Context, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT DISTINCT student_id FROM attendance WHERE date = $1", date)
	if err != nil {
		return nil, fmt.Errorf("query attendance identities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student ids: %w", err)
	}
	return ids, nil
}

// Dates returns all dates with at least one record, sorted ascending.
func (r *AttendanceRepository) Dates(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT DISTINCT date FROM attendance ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("query attendance dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, day.Format(ledger.DateFormat))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates: %w", err)
	}
	return dates, nil
}
