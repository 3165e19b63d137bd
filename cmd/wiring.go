package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/smart-attendance/internal/camera"
	"github.com/kozaktomas/smart-attendance/internal/capture"
	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/detect"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/roster"
	"github.com/kozaktomas/smart-attendance/internal/storage/csvdir"
	"github.com/kozaktomas/smart-attendance/internal/storage/postgres"
)

// components holds everything a command needs wired together: the
// roster over PostgreSQL, the attendance ledger over the configured
// backend, and the HTTP face detector client.
type components struct {
	cfg      *config.Config
	pool     *postgres.Pool
	students *postgres.StudentRepository
	roster   *roster.Store
	ledger   *ledger.Ledger
	detector *detect.HTTPDetector
}

func (c *components) Close() {
	if c.pool != nil {
		_ = c.pool.Close()
	}
}

// buildComponents connects storage and assembles the core services.
// The roster always lives in PostgreSQL; the attendance ledger backend
// is selectable (per-day CSV files or the same PostgreSQL database).
func buildComponents(cfg *config.Config) (*components, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	studentRepo := postgres.NewStudentRepository(pool)
	rosterStore := roster.NewStore(studentRepo, cfg.Detector.Dim)

	var ledgerStore ledger.Store
	switch cfg.Ledger.Backend {
	case "csv":
		ledgerStore, err = csvdir.New(cfg.Ledger.CSVDir)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("opening CSV attendance store: %w", err)
		}
	case "postgres":
		ledgerStore = postgres.NewAttendanceRepository(pool)
	default:
		pool.Close()
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q (want csv or postgres)", cfg.Ledger.Backend)
	}

	return &components{
		cfg:      cfg,
		pool:     pool,
		students: studentRepo,
		roster:   rosterStore,
		ledger:   ledger.New(ledgerStore),
		detector: detect.NewHTTPDetector(&cfg.Detector),
	}, nil
}

// buildLedger wires only the attendance ledger. Read-only attendance
// commands with the csv backend run without DATABASE_URL or a live
// PostgreSQL; the postgres backend still connects.
func buildLedger(cfg *config.Config) (*ledger.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case "csv":
		store, err := csvdir.New(cfg.Ledger.CSVDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening CSV attendance store: %w", err)
		}
		return ledger.New(store), func() {}, nil
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, nil, errors.New("DATABASE_URL environment variable is required")
		}
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		return ledger.New(postgres.NewAttendanceRepository(pool)), func() { _ = pool.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown LEDGER_BACKEND %q (want csv or postgres)", cfg.Ledger.Backend)
	}
}

// buildPipeline assembles the capture pipeline over the components.
func buildPipeline(c *components, onMark func(ledger.Record)) (*capture.Pipeline, error) {
	snapshotURL := c.cfg.Camera.SnapshotURL
	if snapshotURL == "" {
		return nil, errors.New("CAMERA_SNAPSHOT_URL environment variable is required")
	}

	open := func(ctx context.Context) (capture.Source, error) {
		return camera.Open(ctx, snapshotURL, c.cfg.Camera.ReadTimeout)
	}

	opts := capture.Options{
		Threshold:              c.cfg.Match.Threshold,
		FrameInterval:          c.cfg.Camera.FrameInterval,
		ReadTimeout:            c.cfg.Camera.ReadTimeout,
		MaxConsecutiveFailures: c.cfg.Camera.MaxConsecutiveFailures,
		Cooldown:               c.cfg.Pipeline.Cooldown,
		DedupThreshold:         c.cfg.Pipeline.DedupThreshold,
		ShortlistCutoff:        c.cfg.Pipeline.ShortlistCutoff,
		ShortlistK:             c.cfg.Pipeline.ShortlistK,
		OnMark:                 onMark,
	}

	return capture.New(open, c.detector, c.roster, c.ledger, opts), nil
}
