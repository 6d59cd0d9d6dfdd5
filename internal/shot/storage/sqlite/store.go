package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/version"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store is the run store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenDB opens the database at path with the store's PRAGMAs applied and
// without migrating it.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Run is one execution of the dual-angle pipeline.
type Run struct {
	RunID                  string          `json:"run_id"`
	CreatedAt              int64           `json:"created_at"`
	Name                   string          `json:"name"`
	CalibrationVersion     string          `json:"calibration_version"`
	CalibrationFingerprint string          `json:"calibration_fingerprint"`
	ParamsJSON             json.RawMessage `json:"params_json,omitempty"`
	NearSource             string          `json:"near_source"`
	FarSource              string          `json:"far_source"`
	ToolVersion            string          `json:"tool_version"`
	StatsJSON              json.RawMessage `json:"stats_json,omitempty"`
}

// NewRun describes a run over the given sources with cfg. The resolved
// calibration is stored so the run stays reproducible when defaults change.
// stats may be nil.
func NewRun(cfg *config.CalibrationConfig, name, nearSource, farSource string, stats interface{}) (*Run, error) {
	params, err := json.Marshal(cfg.Resolved())
	if err != nil {
		return nil, fmt.Errorf("marshal calibration: %w", err)
	}
	run := &Run{
		Name:                   name,
		CalibrationVersion:     cfg.GetVersion(),
		CalibrationFingerprint: cfg.Fingerprint(),
		ParamsJSON:             params,
		NearSource:             nearSource,
		FarSource:              farSource,
		ToolVersion:            version.Version,
	}
	if stats != nil {
		if run.StatsJSON, err = json.Marshal(stats); err != nil {
			return nil, fmt.Errorf("marshal stats: %w", err)
		}
	}
	return run, nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// CreateRun persists run. If RunID is empty, a UUID is generated.
func (s *Store) CreateRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO runs (
				run_id, created_at, name, calibration_version, calibration_fingerprint,
				params_json, near_source, far_source, tool_version, stats_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.Name, run.CalibrationVersion, run.CalibrationFingerprint,
			nullableJSON(run.ParamsJSON), run.NearSource, run.FarSource, run.ToolVersion, nullableJSON(run.StatsJSON),
		)
		return err
	})
}

const runColumns = `run_id, created_at, name, calibration_version, calibration_fingerprint,
		       params_json, near_source, far_source, tool_version, stats_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var params, stats sql.NullString
	if err := row.Scan(
		&r.RunID, &r.CreatedAt, &r.Name, &r.CalibrationVersion, &r.CalibrationFingerprint,
		&params, &r.NearSource, &r.FarSource, &r.ToolVersion, &stats,
	); err != nil {
		return nil, err
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	if stats.Valid {
		r.StatsJSON = json.RawMessage(stats.String)
	}
	return &r, nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}
