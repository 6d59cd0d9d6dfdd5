package sqlite

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/shot"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestMigrations(t *testing.T) {
	t.Parallel()
	db, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := MigrateVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, MigrateUp(db))
	require.NoError(t, MigrateUp(db), "second up is a no-op")
	v, _, err = MigrateVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('runs','shot_records','fused_shots')`).Scan(&n))
	assert.Equal(t, 3, n)

	require.NoError(t, MigrateDown(db))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('runs','shot_records','fused_shots')`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestRuns(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	run, err := NewRun(nil, "baseline", "near.jsonl", "far.jsonl", map[string]int{"total_shots": 2})
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.CreatedAt)
	assert.Equal(t, config.EmptyCalibrationConfig().Fingerprint(), run.CalibrationFingerprint)

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "baseline", got.Name)
	assert.Equal(t, "near.jsonl", got.NearSource)
	assert.JSONEq(t, `{"total_shots":2}`, string(got.StatsJSON))

	var params config.CalibrationConfig
	require.NoError(t, json.Unmarshal(got.ParamsJSON, &params))
	assert.Equal(t, 3.0, params.GetMatching().GetToleranceSeconds())

	second := &Run{Name: "tuned", CalibrationVersion: "1", CalibrationFingerprint: "x", CreatedAt: run.CreatedAt + 1}
	require.NoError(t, s.CreateRun(second))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "tuned", runs[0].Name, "newest first")
	assert.Empty(t, runs[0].ParamsJSON)

	_, err = s.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, s.DeleteRun(second.RunID))
	assert.ErrorIs(t, s.DeleteRun(second.RunID), ErrRunNotFound)
}

func sampleRecords() []*shot.ShotRecord {
	near := &shot.ShotRecord{
		ID: shot.RecordID(shot.AngleNear, 10, 30), Angle: shot.AngleNear, TimestampSeconds: 0.4,
		StartFrame: 10, EndFrame: 30, Outcome: shot.OutcomeMade, OutcomeReason: "complete_pass_through",
		Confidence: 0.95, Model: "rule-based-v1.0", CloseReason: shot.CloseBallLost,
		Features: shot.Features{TopCrossings: 1, BottomCrossings: 1, AvgSizeRatio: 0.2312, Samples: 20, InZoneFrames: 5, DwellSeconds: 0.1333, SwooshSpeed: 1425},
		Crossings: []shot.Crossing{
			{Boundary: shot.BoundaryTop, FrameIndex: 10, Timestamp: 0.3333, X: 500, Y: 190, SizeRatio: 0.2312, Valid: true},
		},
		Evidence: []shot.Evidence{{Check: "bounce_upward_px", Value: 0, Threshold: 50}},
	}
	far := &shot.ShotRecord{
		ID: shot.RecordID(shot.AngleFar, 12, 31), Angle: shot.AngleFar, TimestampSeconds: 0.5,
		StartFrame: 12, EndFrame: 31, Outcome: shot.OutcomeMissed, OutcomeReason: "no_top_crossing",
		Confidence: 0.7, Model: "rule-based-v1.0", CloseReason: shot.CloseEndOfStream, Incomplete: true,
		Features: shot.Features{Samples: 8, InZoneFrames: 3},
	}
	return []*shot.ShotRecord{near, far}
}

func TestRecordsAndFused(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	run := &Run{CalibrationVersion: "1", CalibrationFingerprint: "abc"}
	require.NoError(t, s.CreateRun(run))

	records := sampleRecords()
	require.NoError(t, s.InsertRecords(run.RunID, records))

	got, err := s.ListRecords(run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	fused := []shot.FusedShot{
		{
			ID: shot.FusedID(records[0].ID, records[1].ID), TimestampSeconds: 0.4,
			Outcome: shot.OutcomeMade, FusionMethod: shot.MethodDisagreement, FusionConfidence: 0.8075,
			NearRecord: records[0], FarRecord: records[1], TimeDiff: 0.1, Pattern: shot.PatternAmbiguous,
			Scores:   map[shot.Outcome]float64{shot.OutcomeMade: 0.5445, shot.OutcomeMissed: 0.2385},
			Evidence: []shot.Evidence{{Check: "near_signal:crossing_strength", Value: 1, Threshold: 0.35, Passed: true}},
		},
		{
			ID: shot.FusedID(records[0].ID, ""), TimestampSeconds: 9.5,
			Outcome: shot.OutcomeUndetermined, FusionMethod: shot.MethodSingleNearRejected,
			NearRecord: records[0],
		},
	}
	require.NoError(t, s.InsertFused(run.RunID, fused))

	gotFused, err := s.ListFused(run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(fused, gotFused); diff != "" {
		t.Errorf("fused mismatch (-want +got):\n%s", diff)
	}

	// cascade on run delete
	require.NoError(t, s.DeleteRun(run.RunID))
	got, err = s.ListRecords(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInsertRecordsUnknownRun(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	err := s.InsertRecords("no-such-run", sampleRecords())
	assert.Error(t, err, "foreign keys are enforced")
}

func TestCompareRuns(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	tolerance := 4.0
	tuned := &config.CalibrationConfig{Matching: &config.MatchingCalibration{ToleranceSeconds: &tolerance}}

	runA, err := NewRun(nil, "a", "", "", nil)
	require.NoError(t, err)
	runB, err := NewRun(tuned, "b", "", "", nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(runA))
	require.NoError(t, s.CreateRun(runB))

	verdict := func(id string, ts float64, o shot.Outcome) shot.FusedShot {
		return shot.FusedShot{ID: id, TimestampSeconds: ts, Outcome: o, FusionMethod: shot.MethodAgreement}
	}
	require.NoError(t, s.InsertFused(runA.RunID, []shot.FusedShot{
		verdict("a1", 1.0, shot.OutcomeMade),
		verdict("a2", 5.0, shot.OutcomeMade),
		verdict("a3", 20.0, shot.OutcomeMissed),
	}))
	require.NoError(t, s.InsertFused(runB.RunID, []shot.FusedShot{
		verdict("b1", 1.2, shot.OutcomeMade),
		verdict("b2", 5.1, shot.OutcomeMissed),
		verdict("b3", 40.0, shot.OutcomeMade),
	}))

	res, err := s.CompareRuns(runA.RunID, runB.RunID, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 1, res.Unchanged)
	require.Len(t, res.Flips, 1)
	assert.Equal(t, "a2", res.Flips[0].FusedIDA)
	assert.Equal(t, "b2", res.Flips[0].FusedIDB)
	assert.Equal(t, shot.OutcomeMade, res.Flips[0].OutcomeA)
	assert.Equal(t, shot.OutcomeMissed, res.Flips[0].OutcomeB)
	assert.Equal(t, []string{"a3"}, res.OnlyInA)
	assert.Equal(t, []string{"b3"}, res.OnlyInB)

	require.Contains(t, res.ParamChanges, "matching.tolerance_seconds")
	assert.Equal(t, map[string]any{"run1": 3.0, "run2": 4.0}, res.ParamChanges["matching.tolerance_seconds"])
	assert.Len(t, res.ParamChanges, 1)

	_, err = s.CompareRuns(runA.RunID, "missing", 0.5)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
