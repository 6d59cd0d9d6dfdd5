package shot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testZone() HoopZone {
	// hoop centred at (500, 300), 100x50 box
	return NewHoopZone(BBox{450, 275, 550, 325}, ZoneExtents{HalfWidth: 80, TopExtent: 110, BottomExtent: 80})
}

func TestHoopZoneContains(t *testing.T) {
	t.Parallel()
	z := testZone()
	require.Equal(t, 190.0, z.TopBoundary())
	require.Equal(t, 380.0, z.BottomBoundary())

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"centre", Point{500, 300}, true},
		{"exactly on top boundary", Point{500, 190}, true},
		{"exactly on bottom boundary", Point{500, 380}, true},
		{"exactly on left edge", Point{420, 300}, true},
		{"exactly on right edge", Point{580, 300}, true},
		{"just above top", Point{500, 189.999}, false},
		{"just below bottom", Point{500, 380.001}, false},
		{"outside horizontally", Point{581, 300}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, z.Contains(tt.p))
		})
	}
}

func TestZoneExtentsValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ZoneExtents{1, 1, 1}.Validate())
	assert.Error(t, ZoneExtents{0, 1, 1}.Validate())
	assert.Error(t, ZoneExtents{1, -1, 1}.Validate())
	assert.Error(t, ZoneExtents{1, 1, 0}.Validate())
}

func TestSizeRatio(t *testing.T) {
	t.Parallel()
	z := testZone()
	assert.InDelta(t, 0.2, z.SizeRatio(1000), 1e-9)
	assert.Equal(t, 0.0, HoopZone{}.SizeRatio(1000))
}

func TestFrameBest(t *testing.T) {
	t.Parallel()
	f := Frame{Detections: []Detection{
		{Class: ClassBall, BBox: BBox{0, 0, 10, 10}, Confidence: 0.3},
		{Class: ClassBall, BBox: BBox{0, 0, 10, 10}, Confidence: 0.6},
		{Class: ClassBall, BBox: BBox{5, 5, 15, 15}, Confidence: 0.6},
		{Class: ClassHoop, BBox: BBox{0, 0, 10, 10}, Confidence: 0.9},
		{Class: ClassBall, BBox: BBox{0, 0, 0, 10}, Confidence: 0.99},
	}}

	d, ok := f.Best(ClassBall, 0.35)
	require.True(t, ok)
	assert.Equal(t, BBox{0, 0, 10, 10}, d.BBox, "ties keep the first detection; degenerate boxes are ignored")

	_, ok = f.Best(ClassHoop, 0.95)
	assert.False(t, ok)
}

func TestParseClass(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]Class{
		"ball": ClassBall, "Basketball": ClassBall, "hoop": ClassHoop,
		"basketball_hoop": ClassHoop, "Rim": ClassHoop,
	} {
		got, err := ParseClass(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseClass("person")
	assert.Error(t, err)
}

func TestShotRecordJSONFlattensFeatures(t *testing.T) {
	t.Parallel()
	rec := ShotRecord{
		Outcome:  OutcomeMade,
		Features: Features{TopCrossings: 1, BottomCrossings: 1, BounceUpwardPx: 12},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{
		"timestamp_seconds", "outcome", "outcome_reason", "confidence",
		"top_crossings", "bottom_crossings", "avg_size_ratio",
		"bounced_back_out", "bounce_upward_px", "bounce_lateral_px",
	} {
		assert.Contains(t, m, key)
	}
}

func TestDeterministicIDs(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RecordID(AngleNear, 10, 40), RecordID(AngleNear, 10, 40))
	assert.NotEqual(t, RecordID(AngleNear, 10, 40), RecordID(AngleFar, 10, 40))
	assert.Equal(t, FusedID("a", ""), FusedID("a", ""))
	assert.NotEqual(t, FusedID("a", ""), FusedID("", "a"))
}
