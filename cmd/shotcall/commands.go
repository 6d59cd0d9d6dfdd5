package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/shot"
	"github.com/banshee-data/shotcall/internal/shot/detections"
	"github.com/banshee-data/shotcall/internal/shot/pipeline"
	"github.com/banshee-data/shotcall/internal/shot/report"
	"github.com/banshee-data/shotcall/internal/shot/storage/sqlite"
	"github.com/banshee-data/shotcall/internal/shot/tracker"
)

// loadCalibration reads path, or the built-in defaults when path is empty,
// and applies an explicit clock offset.
func loadCalibration(path string, offset *float64) (*config.CalibrationConfig, error) {
	cfg := config.EmptyCalibrationConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadCalibrationConfig(path); err != nil {
			return nil, err
		}
	}
	if offset != nil {
		if cfg.Matching == nil {
			cfg.Matching = &config.MatchingCalibration{}
		}
		cfg.Matching.ClockOffsetSeconds = offset
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func openSource(path string) (*detections.JSONLSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return detections.NewJSONLSource(f), f, nil
}

func runFuse(ctx context.Context, args []string, settings *config.Settings, stdout io.Writer) error {
	fs := flag.NewFlagSet("fuse", flag.ContinueOnError)
	nearPath := fs.String("near", "", "Near-angle detections (JSON lines)")
	farPath := fs.String("far", "", "Far-angle detections (JSON lines)")
	cfgPath := fs.String("config", settings.ConfigPath, "Calibration file (JSON); built-in defaults when empty")
	offset := fs.Float64("offset", 0, "Far clock offset in seconds, subtracted from far timestamps")
	outDir := fs.String("out", settings.OutDir, "Output directory; a session directory is created inside")
	dbPath := fs.String("db", settings.DBPath, "Run store database; runs are not stored when empty")
	plots := fs.Bool("plots", false, "Write a trajectory plot per finalized sequence")
	name := fs.String("name", "", "Run name stored with the run")
	abort := fs.String("abort", settings.AbortPolicy, "Open sequence handling on interrupt: discard or finalize")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *nearPath == "" || *farPath == "" {
		return errors.New("both -near and -far are required")
	}

	var offsetOverride *float64
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "offset" {
			offsetOverride = offset
		}
	})
	cfg, err := loadCalibration(*cfgPath, offsetOverride)
	if err != nil {
		return err
	}
	policy, err := tracker.ParseAbortPolicy(*abort)
	if err != nil {
		return err
	}

	near, nearCloser, err := openSource(*nearPath)
	if err != nil {
		return err
	}
	defer nearCloser.Close()
	far, farCloser, err := openSource(*farPath)
	if err != nil {
		return err
	}
	defer farCloser.Close()

	sessionID := uuid.New().String()
	dirName := sessionID
	if *name != "" {
		dirName = *name + "_" + sessionID
	}
	sessionDir, err := report.SessionDir(*outDir, dirName)
	if err != nil {
		return err
	}

	dual, err := pipeline.NewDualAngle(cfg, policy)
	if err != nil {
		return err
	}
	if *plots {
		plotDir := filepath.Join(sessionDir, "plots")
		dual.SetObserver(func(seq *shot.ShotSequence, rec *shot.ShotRecord) {
			if len(seq.Points) == 0 {
				return
			}
			if err := report.PlotSequence(filepath.Join(plotDir, report.PlotFileName(rec)), seq, rec); err != nil {
				log.Printf("Failed to plot sequence %s: %v", rec.ID, err)
			}
		})
	}

	res, runErr := dual.Run(ctx, near, far)
	if res == nil {
		return runErr
	}
	if runErr != nil {
		log.Printf("Run interrupted, writing partial results: %v", runErr)
	}

	info := report.NewSessionInfo(sessionID, cfg, *nearPath, *farPath)
	if err := report.WriteResults(filepath.Join(sessionDir, report.ResultsFileName), info, res); err != nil {
		return err
	}
	timeline, err := os.Create(filepath.Join(sessionDir, "timeline.html"))
	if err != nil {
		return err
	}
	if err := report.RenderTimeline(timeline, "Shot timeline "+sessionID, res.Fused); err != nil {
		timeline.Close()
		return err
	}
	if err := timeline.Close(); err != nil {
		return err
	}

	if *dbPath != "" {
		if err := storeRun(*dbPath, sessionID, *name, cfg, *nearPath, *farPath, res); err != nil {
			return err
		}
	}

	s := res.Stats
	fmt.Fprintf(stdout, "session %s\n", sessionID)
	fmt.Fprintf(stdout, "shots: %d  made: %d  missed: %d  undetermined: %d\n", s.TotalShots, s.Made, s.Missed, s.Undetermined)
	fmt.Fprintf(stdout, "matched pairs: %d  unmatched near: %d  unmatched far: %d\n", s.MatchedPairs, s.UnmatchedNear, s.UnmatchedFar)
	fmt.Fprintf(stdout, "results: %s\n", sessionDir)
	return runErr
}

func storeRun(dbPath, runID, name string, cfg *config.CalibrationConfig, nearPath, farPath string, res *pipeline.Result) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := sqlite.NewRun(cfg, name, nearPath, farPath, res.Stats)
	if err != nil {
		return err
	}
	run.RunID = runID
	if err := store.CreateRun(run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	records := append(append([]*shot.ShotRecord{}, res.Near...), res.Far...)
	if err := store.InsertRecords(run.RunID, records); err != nil {
		return err
	}
	if err := store.InsertFused(run.RunID, res.Fused); err != nil {
		return err
	}
	monitoring.Logf("[store] run %s: %d records, %d verdicts", run.RunID, len(records), len(res.Fused))
	return nil
}

func runCompare(args []string, settings *config.Settings, stdout io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	dbPath := fs.String("db", settings.DBPath, "Run store database")
	a := fs.String("a", "", "First run ID")
	b := fs.String("b", "", "Second run ID")
	tolerance := fs.Float64("tolerance", 1.0, "Largest time difference in seconds for two verdicts to be the same shot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || *a == "" || *b == "" {
		return errors.New("-db, -a and -b are required")
	}

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	cmp, err := store.CompareRuns(*a, *b, *tolerance)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cmp)
}

func runMigrate(args []string, settings *config.Settings, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", settings.DBPath, "Run store database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || fs.NArg() != 1 {
		return errors.New("usage: shotcall migrate -db <path> up|down|version")
	}

	db, err := sqlite.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch fs.Arg(0) {
	case "up":
		if err := sqlite.MigrateUp(db); err != nil {
			return err
		}
	case "down":
		if err := sqlite.MigrateDown(db); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action: %s", fs.Arg(0))
	}

	v, dirty, err := sqlite.MigrateVersion(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
