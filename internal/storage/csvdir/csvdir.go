// Package csvdir stores attendance records as one CSV file per day,
// the format the system has always used on disk
// (attendance_2026-08-23.csv). Appends are single write() calls so a
// crash never leaves a torn record behind.
package csvdir

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

const (
	filePrefix = "attendance_"
	fileSuffix = ".csv"
	timeFormat = "15:04:05"
)

var header = []string{"ID", "Name", "Date", "Time"}

// Store is a per-day CSV attendance store rooted at a directory.
type Store struct {
	dir string
}

// New creates the store, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating attendance directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) fileForDate(date string) string {
	return filepath.Join(s.dir, filePrefix+date+fileSuffix)
}

// Append durably writes a single record to the day's file. The header
// and the record are flushed in one write each, so a reader never sees
// half a row.
func (s *Store) Append(ctx context.Context, rec ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.fileForDate(rec.Date)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	// The header decision comes from the opened handle, not a prior
	// Stat, so two writers racing on file creation cannot both see a
	// missing file and prepend duplicate headers.
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	isNew := info.Size() == 0

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if isNew {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	row := []string{rec.StudentID, rec.DisplayName, rec.Date, rec.Timestamp.Format(timeFormat)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return nil
}

// ListByDate reads the whole day's file.
func (s *Store) ListByDate(ctx context.Context, date string) ([]ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.fileForDate(date))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening attendance file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	// Skip header row.
	if _, err := r.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var records []ledger.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}

		ts, err := parseTimestamp(row[2], row[3])
		if err != nil {
			return nil, fmt.Errorf("parsing record timestamp: %w", err)
		}
		records = append(records, ledger.Record{
			StudentID:   row[0],
			DisplayName: row[1],
			Date:        row[2],
			Timestamp:   ts,
		})
	}
	return records, nil
}

// IdentitiesByDate returns the distinct student IDs recorded on a date.
func (s *Store) IdentitiesByDate(ctx context.Context, date string) ([]string, error) {
	records, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	var ids []string
	for _, rec := range records {
		if _, ok := seen[rec.StudentID]; ok {
			continue
		}
		seen[rec.StudentID] = struct{}{}
		ids = append(ids, rec.StudentID)
	}
	return ids, nil
}

// Dates lists all dates with an attendance file, sorted ascending.
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing attendance directory: %w", err)
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := time.Parse(ledger.DateFormat, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	// ReadDir returns entries sorted by name, which for this naming
	// scheme is chronological order already.
	return dates, nil
}

func parseTimestamp(date, clock string) (time.Time, error) {
	return time.ParseInLocation(ledger.DateFormat+" "+timeFormat, date+" "+clock, time.Local)
}
