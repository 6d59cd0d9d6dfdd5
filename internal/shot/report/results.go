package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/shot"
	"github.com/banshee-data/shotcall/internal/shot/pipeline"
	"github.com/banshee-data/shotcall/internal/version"
)

// ResultsFileName is the results document written into a session directory.
const ResultsFileName = "detection_results.json"

// FusionVersion names the fusion scheme recorded with every session.
const FusionVersion = "pattern-weighted-v1"

// SessionInfo identifies the inputs and parameters of one run.
type SessionInfo struct {
	SessionID              string    `json:"session_id"`
	CreatedAt              time.Time `json:"created_at"`
	NearSource             string    `json:"near_source"`
	FarSource              string    `json:"far_source"`
	ClockOffsetSeconds     float64   `json:"offset"`
	ToleranceSeconds       float64   `json:"tolerance_seconds"`
	FusionVersion          string    `json:"fusion_version"`
	CalibrationVersion     string    `json:"calibration_version"`
	CalibrationName        string    `json:"calibration_name"`
	CalibrationFingerprint string    `json:"calibration_fingerprint"`
	ToolVersion            string    `json:"tool_version"`
}

// NewSessionInfo describes a run of cfg over the given sources.
func NewSessionInfo(sessionID string, cfg *config.CalibrationConfig, nearSource, farSource string) SessionInfo {
	return SessionInfo{
		SessionID:              sessionID,
		CreatedAt:              time.Now().UTC(),
		NearSource:             nearSource,
		FarSource:              farSource,
		ClockOffsetSeconds:     cfg.GetMatching().GetClockOffsetSeconds(),
		ToleranceSeconds:       cfg.GetMatching().GetToleranceSeconds(),
		FusionVersion:          FusionVersion,
		CalibrationVersion:     cfg.GetVersion(),
		CalibrationName:        cfg.GetName(),
		CalibrationFingerprint: cfg.Fingerprint(),
		ToolVersion:            version.Version,
	}
}

// Results is the results document.
type Results struct {
	SessionInfo SessionInfo        `json:"session_info"`
	Statistics  pipeline.Stats     `json:"statistics"`
	Shots       []shot.FusedShot   `json:"shots"`
	NearRecords []*shot.ShotRecord `json:"near_records"`
	FarRecords  []*shot.ShotRecord `json:"far_records"`
}

// WriteResults writes the results document for res to path, creating the
// parent directory if needed.
func WriteResults(path string, info SessionInfo, res *pipeline.Result) error {
	doc := Results{
		SessionInfo: info,
		Statistics:  res.Stats,
		Shots:       res.Fused,
		NearRecords: res.Near,
		FarRecords:  res.Far,
	}
	if doc.Shots == nil {
		doc.Shots = []shot.FusedShot{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// ReadResults loads a results document written by WriteResults.
func ReadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var doc Results
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &doc, nil
}
