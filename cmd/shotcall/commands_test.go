package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/shot"
	"github.com/banshee-data/shotcall/internal/shot/report"
	"github.com/banshee-data/shotcall/internal/shot/storage/sqlite"
)

func init() {
	monitoring.SetLogger(nil)
}

// writeShot writes the detections of one clean make starting at frame base.
func writeShot(t *testing.T, path string, base int64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)

	write := func(class string, box shot.BBox, conf float64, idx int64) {
		require.NoError(t, enc.Encode(map[string]any{
			"class": class, "bbox": box, "confidence": conf,
			"frame_index": idx, "timestamp": float64(idx) / 30,
		}))
	}
	hoop := shot.BBox{450, 275, 550, 325}
	ys := []float64{100, 110, 120, 130, 140, 150, 160, 170, 180, 185, 200, 240, 290, 340, 390, 420, 450, 480}
	for i, y := range ys {
		idx := base + int64(i)
		write("hoop", hoop, 0.9, idx)
		write("ball", shot.BBox{483, y - 17, 517, y + 17}, 0.8, idx)
	}
	for i := 0; i < 12; i++ {
		write("hoop", hoop, 0.9, base+int64(len(ys)+i))
	}
}

func sessionID(t *testing.T, out string) string {
	t.Helper()
	scan := bufio.NewScanner(strings.NewReader(out))
	for scan.Scan() {
		if id, ok := strings.CutPrefix(scan.Text(), "session "); ok {
			return id
		}
	}
	t.Fatalf("no session line in %q", out)
	return ""
}

func TestFuseCompareMigrate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	nearPath := filepath.Join(dir, "near.jsonl")
	farPath := filepath.Join(dir, "far.jsonl")
	writeShot(t, nearPath, 0)
	writeShot(t, farPath, 0)
	dbPath := filepath.Join(dir, "runs.db")
	outDir := filepath.Join(dir, "results")
	settings := &config.Settings{OutDir: outDir, AbortPolicy: "discard"}

	fuse := func(extra ...string) string {
		var stdout bytes.Buffer
		args := append([]string{"-near", nearPath, "-far", farPath, "-db", dbPath}, extra...)
		require.NoError(t, runFuse(context.Background(), args, settings, &stdout))
		return sessionID(t, stdout.String())
	}

	first := fuse("-plots")
	doc, err := report.ReadResults(filepath.Join(outDir, first, report.ResultsFileName))
	require.NoError(t, err)
	require.Len(t, doc.Shots, 1)
	assert.Equal(t, shot.OutcomeMade, doc.Shots[0].Outcome)
	assert.Equal(t, shot.MethodAgreement, doc.Shots[0].FusionMethod)
	assert.FileExists(t, filepath.Join(outDir, first, "timeline.html"))
	plots, err := filepath.Glob(filepath.Join(outDir, first, "plots", "*.png"))
	require.NoError(t, err)
	assert.Len(t, plots, 2)

	second := fuse("-offset", "0.5")

	var stdout bytes.Buffer
	require.NoError(t, runCompare([]string{"-db", dbPath, "-a", first, "-b", second}, settings, &stdout))
	var cmp sqlite.RunComparison
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &cmp))
	assert.Equal(t, 1, cmp.Unchanged)
	assert.Empty(t, cmp.Flips)
	assert.Contains(t, cmp.ParamChanges, "matching.clock_offset_seconds")

	stdout.Reset()
	require.NoError(t, runMigrate([]string{"-db", dbPath, "version"}, settings, &stdout))
	assert.Equal(t, "schema version 1 (dirty: false)\n", stdout.String())
}

func TestFuseRequiresBothStreams(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	err := runFuse(context.Background(), []string{"-near", "x.jsonl"}, &config.Settings{}, &stdout)
	assert.ErrorContains(t, err, "-near and -far")
}

func TestLoadCalibrationOffset(t *testing.T) {
	t.Parallel()
	cfg, err := loadCalibration("", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.GetMatching().GetClockOffsetSeconds())

	offset := 2.5
	cfg, err = loadCalibration("", &offset)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.GetMatching().GetClockOffsetSeconds())

	_, err = loadCalibration(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestMigrateUnknownAction(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	err := runMigrate([]string{"-db", filepath.Join(t.TempDir(), "x.db"), "sideways"}, &config.Settings{}, &stdout)
	assert.ErrorContains(t, err, "unknown migrate action")
}

func TestFuseInterruptedWritesPartialResults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	nearPath := filepath.Join(dir, "near.jsonl")
	farPath := filepath.Join(dir, "far.jsonl")
	writeShot(t, nearPath, 0)
	writeShot(t, farPath, 0)
	outDir := filepath.Join(dir, "results")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout bytes.Buffer
	err := runFuse(ctx, []string{"-near", nearPath, "-far", farPath}, &config.Settings{OutDir: outDir, AbortPolicy: "discard"}, &stdout)
	require.ErrorIs(t, err, context.Canceled)

	id := sessionID(t, stdout.String())
	doc, err := report.ReadResults(filepath.Join(outDir, id, report.ResultsFileName))
	require.NoError(t, err)
	assert.Empty(t, doc.Shots)
	assert.Equal(t, 130, exitCode("fuse", &config.Settings{}, err))
}
