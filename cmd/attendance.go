package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect and export attendance records",
}

var attendanceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show attendance for a date",
	RunE:  runAttendanceShow,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance to CSV files",
	Long: `Export attendance records to one CSV file per date in the output
directory. Without --from/--to every recorded date is exported.`,
	RunE: runAttendanceExport,
}

var attendanceStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show overall attendance totals",
	RunE:  runAttendanceStats,
}

var attendanceHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a student's attendance history",
	Long: `Show the dates a student was marked present over the most recent
recorded days, newest first.`,
	RunE: runAttendanceHistory,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceShowCmd)
	attendanceCmd.AddCommand(attendanceExportCmd)
	attendanceCmd.AddCommand(attendanceStatsCmd)
	attendanceCmd.AddCommand(attendanceHistoryCmd)

	attendanceShowCmd.Flags().String("date", "", "Date to show (YYYY-MM-DD, default today)")

	attendanceExportCmd.Flags().String("from", "", "First date to export (YYYY-MM-DD)")
	attendanceExportCmd.Flags().String("to", "", "Last date to export (YYYY-MM-DD)")
	attendanceExportCmd.Flags().String("out", "export", "Output directory")

	attendanceHistoryCmd.Flags().String("name", "", "Student display name (required)")
	attendanceHistoryCmd.Flags().Int("days", 30, "Number of most recent recorded days to search, 0 for all")
	attendanceHistoryCmd.MarkFlagRequired("name")
}

func runAttendanceShow(cmd *cobra.Command, args []string) error {
	date := mustGetString(cmd, "date")
	if date == "" {
		date = time.Now().Format(ledger.DateFormat)
	}
	if _, err := time.Parse(ledger.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}

	cfg := config.Load()
	l, closeLedger, err := buildLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	records, err := l.Snapshot(context.Background(), date)
	if err != nil {
		return fmt.Errorf("loading attendance: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No attendance recorded for %s\n", date)
		return nil
	}

	fmt.Printf("Attendance for %s\n\n", date)
	fmt.Printf("%-10s %-30s %s\n", "Time", "Name", "ID")
	for _, rec := range records {
		fmt.Printf("%-10s %-30s %s\n", rec.Timestamp.Format("15:04:05"), rec.DisplayName, rec.StudentID)
	}
	fmt.Printf("\n%d students present\n", len(records))
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	from := mustGetString(cmd, "from")
	to := mustGetString(cmd, "to")
	outDir := mustGetString(cmd, "out")

	cfg := config.Load()
	l, closeLedger, err := buildLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	ctx := context.Background()
	dates, err := l.Dates(ctx)
	if err != nil {
		return fmt.Errorf("listing dates: %w", err)
	}

	var selected []string
	for _, date := range dates {
		if from != "" && date < from {
			continue
		}
		if to != "" && date > to {
			continue
		}
		selected = append(selected, date)
	}
	if len(selected) == 0 {
		fmt.Println("No attendance records in the requested range")
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	bar := progressbar.NewOptions(len(selected),
		progressbar.OptionSetDescription("Exporting attendance"),
		progressbar.OptionShowCount(),
	)

	total := 0
	for _, date := range selected {
		records, err := l.Snapshot(ctx, date)
		if err != nil {
			return fmt.Errorf("loading %s: %w", date, err)
		}
		if err := writeExportFile(outDir, date, records); err != nil {
			return err
		}
		total += len(records)
		bar.Add(1)
	}

	fmt.Printf("\nExported %d records across %d days to %s\n", total, len(selected), outDir)
	return nil
}

func writeExportFile(dir, date string, records []ledger.Record) error {
	path := filepath.Join(dir, fmt.Sprintf("attendance_%s.csv", date))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"ID", "Name", "Date", "Time"})
	for _, rec := range records {
		w.Write([]string{rec.StudentID, rec.DisplayName, rec.Date, rec.Timestamp.Format("15:04:05")})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func runAttendanceStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	l, closeLedger, err := buildLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	stats, err := l.ComputeStats(context.Background())
	if err != nil {
		return fmt.Errorf("computing stats: %w", err)
	}

	fmt.Printf("Days recorded:   %d\n", stats.TotalDays)
	fmt.Printf("Total records:   %d\n", stats.TotalRecords)
	fmt.Printf("Unique students: %d\n", stats.UniqueStudents)
	return nil
}

func runAttendanceHistory(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	days := mustGetInt(cmd, "days")

	// Name lookup needs the roster, so history connects to the
	// database regardless of the ledger backend.
	cfg := config.Load()
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.roster.Load(ctx); err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	id, ok := c.roster.FindByName(name)
	if !ok {
		return fmt.Errorf("student %q not found", name)
	}

	records, err := c.ledger.History(ctx, id, days)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No attendance recorded for %s\n", name)
		return nil
	}

	fmt.Printf("Attendance history for %s (%s)\n\n", name, id)
	fmt.Printf("%-12s %s\n", "Date", "Time")
	for _, rec := range records {
		fmt.Printf("%-12s %s\n", rec.Date, rec.Timestamp.Format("15:04:05"))
	}
	fmt.Printf("\nPresent on %d days\n", len(records))
	return nil
}
