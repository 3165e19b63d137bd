package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/capture"
	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a headless capture session",
	Long: `Run the recognition pipeline without the web server, printing each
attendance mark to stdout. Stops on Ctrl+C or when the camera is lost.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	pipeline, err := buildPipeline(c, func(rec ledger.Record) {
		fmt.Printf("%s  %s (%s)\n", rec.Timestamp.Format("15:04:05"), rec.DisplayName, rec.StudentID)
	})
	if err != nil {
		return err
	}

	if _, err := pipeline.Start(context.Background()); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}

	fmt.Printf("Watching camera %s (%d students enrolled)\n",
		cfg.Camera.SnapshotURL, c.roster.Count())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\nStopping...")
			pipeline.Stop()
			return nil
		case <-ticker.C:
			// The pipeline stops itself when the camera is lost.
			if pipeline.State() == capture.StateStopped {
				if err := pipeline.LastErr(); err != nil {
					return fmt.Errorf("capture ended: %w", err)
				}
				return nil
			}
		}
	}
}
