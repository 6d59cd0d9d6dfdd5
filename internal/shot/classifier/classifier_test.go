package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/shot"
	"github.com/banshee-data/shotcall/internal/shot/tracker"
)

func init() {
	monitoring.SetLogger(nil)
}

func seqWith(f shot.Features) *shot.ShotSequence {
	return &shot.ShotSequence{
		Angle:          shot.AngleNear,
		StartFrame:     100,
		EndFrame:       130,
		StartTimestamp: 100.0 / 30,
		EndTimestamp:   130.0 / 30,
		CloseReason:    shot.CloseEndOfStream,
		Features:       f,
	}
}

func TestRuleTable(t *testing.T) {
	t.Parallel()
	c := NewShotClassifier(DefaultConfig())

	tests := []struct {
		name       string
		features   shot.Features
		outcome    shot.Outcome
		reason     string
		confidence float64
	}{
		{
			name:     "too few samples",
			features: shot.Features{Samples: 2, TopCrossings: 1, BottomCrossings: 1},
			outcome:  shot.OutcomeUndetermined, reason: RuleInsufficientSamples, confidence: 0,
		},
		{
			name:     "no top crossing, short dwell",
			features: shot.Features{Samples: 10, InZoneFrames: 5},
			outcome:  shot.OutcomeMissed, reason: RuleNoTopCrossing, confidence: 0.70,
		},
		{
			name:     "no top crossing regardless of bottom crossings",
			features: shot.Features{Samples: 10, InZoneFrames: 5, BottomCrossings: 2},
			outcome:  shot.OutcomeMissed, reason: RuleNoTopCrossing, confidence: 0.70,
		},
		{
			name:     "no top crossing with a long dwell",
			features: shot.Features{Samples: 60, InZoneFrames: 50, BottomCrossings: 1},
			outcome:  shot.OutcomeMissed, reason: RuleNoTopCrossing, confidence: 0.70,
		},
		{
			name:     "top crossings all rejected on depth",
			features: shot.Features{Samples: 12, InZoneFrames: 6, InvalidCrossings: 2, InvalidTopCrossings: 1},
			outcome:  shot.OutcomeMissed, reason: RuleWrongDepth, confidence: 0.70,
		},
		{
			name:     "only a bottom crossing rejected on depth",
			features: shot.Features{Samples: 12, InZoneFrames: 6, InvalidCrossings: 1},
			outcome:  shot.OutcomeMissed, reason: RuleNoTopCrossing, confidence: 0.70,
		},
		{
			name:     "a valid top crossing outranks rejected ones",
			features: shot.Features{Samples: 12, InZoneFrames: 4, TopCrossings: 1, BottomCrossings: 1, InvalidCrossings: 1, InvalidTopCrossings: 1},
			outcome:  shot.OutcomeMade, reason: RuleCompletePass, confidence: 0.95,
		},
		{
			name:     "complete pass through",
			features: shot.Features{Samples: 12, InZoneFrames: 4, TopCrossings: 1, BottomCrossings: 1},
			outcome:  shot.OutcomeMade, reason: RuleCompletePass, confidence: 0.95,
		},
		{
			name:     "rim bounce out",
			features: shot.Features{Samples: 12, InZoneFrames: 6, TopCrossings: 1, BottomCrossings: 1, BouncedBackOut: true},
			outcome:  shot.OutcomeMissed, reason: RuleRimBounceOut, confidence: 0.90,
		},
		{
			name:     "swish lost in the net",
			features: shot.Features{Samples: 12, InZoneFrames: 8, TopCrossings: 1, AvgSizeRatio: 0.23},
			outcome:  shot.OutcomeMade, reason: RuleSwish, confidence: 0.80,
		},
		{
			name:     "dwell but ratio outside the strict band",
			features: shot.Features{Samples: 12, InZoneFrames: 8, TopCrossings: 1, AvgSizeRatio: 0.27},
			outcome:  shot.OutcomeMissed, reason: RuleIncompletePass, confidence: 0.70,
		},
		{
			name:     "top only with short dwell",
			features: shot.Features{Samples: 12, InZoneFrames: 3, TopCrossings: 1, AvgSizeRatio: 0.23},
			outcome:  shot.OutcomeMissed, reason: RuleIncompletePass, confidence: 0.70,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.Classify(seqWith(tt.features))
			assert.Equal(t, tt.outcome, rec.Outcome)
			assert.Equal(t, tt.reason, rec.OutcomeReason)
			assert.InDelta(t, tt.confidence, rec.Confidence, 1e-9)
		})
	}
}

func TestRulesIndependently(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	swish, ok := RuleByName(RuleSwish)
	require.True(t, ok)
	matched, evidence := swish.Match(shot.Features{TopCrossings: 1, InZoneFrames: 8, AvgSizeRatio: 0.2}, cfg)
	assert.True(t, matched, "sub-band bounds are inclusive")
	assert.Len(t, evidence, 3)

	matched, _ = swish.Match(shot.Features{TopCrossings: 1, BottomCrossings: 1, InZoneFrames: 8, AvgSizeRatio: 0.23}, cfg)
	assert.False(t, matched, "a visible exit is not a swish")

	rim, ok := RuleByName(RuleRimBounceOut)
	require.True(t, ok)
	matched, _ = rim.Match(shot.Features{TopCrossings: 1, BottomCrossings: 1}, cfg)
	assert.False(t, matched)

	_, ok = RuleByName("banked")
	assert.False(t, ok)
}

func TestCustomRuleTable(t *testing.T) {
	t.Parallel()
	always := Rule{
		Name:       "always_missed",
		Outcome:    shot.OutcomeMissed,
		Match:      func(shot.Features, Config) (bool, []shot.Evidence) { return true, nil },
		Confidence: func(Config) float64 { return 1.4 },
	}
	c := NewShotClassifierWithRules(DefaultConfig(), []Rule{always})
	rec := c.Classify(seqWith(shot.Features{}))
	assert.Equal(t, "always_missed", rec.OutcomeReason)
	assert.Equal(t, 1.0, rec.Confidence, "confidence is clamped")

	empty := NewShotClassifierWithRules(DefaultConfig(), nil)
	assert.Equal(t, shot.OutcomeUndetermined, empty.Classify(seqWith(shot.Features{})).Outcome)
}

func TestOutcomeAlwaysSet(t *testing.T) {
	t.Parallel()
	c := NewShotClassifier(DefaultConfig())
	for _, samples := range []int{0, 2, 5, 60} {
		for _, inZone := range []int{0, 3, 8, 50} {
			for _, top := range []int{0, 1, 2} {
				for _, bottom := range []int{0, 1} {
					for _, bounced := range []bool{false, true} {
						rec := c.Classify(seqWith(shot.Features{
							Samples: samples, InZoneFrames: inZone, TopCrossings: top,
							BottomCrossings: bottom, BouncedBackOut: bounced, AvgSizeRatio: 0.23,
						}))
						assert.Contains(t, []shot.Outcome{shot.OutcomeMade, shot.OutcomeMissed, shot.OutcomeUndetermined}, rec.Outcome)
						assert.NotEmpty(t, rec.OutcomeReason)
					}
				}
			}
		}
	}
}

func TestIdempotent(t *testing.T) {
	t.Parallel()
	c := NewShotClassifier(DefaultConfig())
	seq := seqWith(shot.Features{Samples: 12, InZoneFrames: 8, TopCrossings: 1, AvgSizeRatio: 0.23})

	first := c.Classify(seq)
	second := c.Classify(seq)
	assert.Equal(t, first, second)
	assert.Equal(t, shot.RecordID(shot.AngleNear, 100, 130), first.ID)
	assert.InDelta(t, 115.0/30, first.TimestampSeconds, 1e-9)
}

func TestEvidenceTrail(t *testing.T) {
	t.Parallel()
	c := NewShotClassifier(DefaultConfig())
	seq := seqWith(shot.Features{Samples: 12, InZoneFrames: 3, TopCrossings: 1, AvgSizeRatio: 0.23})
	seq.Evidence = []shot.Evidence{{Check: "top_crossing_depth@105:max_ratio", Value: 0.23, Threshold: 0.28, Passed: true}}

	rec := c.Classify(seq)
	require.NotEmpty(t, rec.Evidence)
	assert.Equal(t, "top_crossing_depth@105:max_ratio", rec.Evidence[0].Check, "tracker evidence is carried over")

	var dwell *shot.Evidence
	for i := range rec.Evidence {
		if strings.HasSuffix(rec.Evidence[i].Check, "swish_dwell_frames") {
			dwell = &rec.Evidence[i]
		}
	}
	require.NotNil(t, dwell)
	assert.Equal(t, 3.0, dwell.Value)
	assert.Equal(t, 8.0, dwell.Threshold)
	assert.False(t, dwell.Passed)
	assert.True(t, strings.HasPrefix(dwell.Check, "rule5_swish:"))
}

// Trajectory-level scenarios run through the tracker.

const fps = 30.0

var hoopBox = shot.BBox{450, 275, 550, 325}

func trackAndClassify(t *testing.T, balls map[int64]shot.Point, last int64) *shot.ShotRecord {
	t.Helper()
	tr, err := tracker.NewTracker(tracker.DefaultConfig(shot.AngleNear))
	require.NoError(t, err)

	var seqs []*shot.ShotSequence
	for i := int64(0); i <= last; i++ {
		f := shot.Frame{Index: i, Timestamp: float64(i) / fps, Detections: []shot.Detection{
			{Class: shot.ClassHoop, BBox: hoopBox, Confidence: 0.9},
		}}
		if p, ok := balls[i]; ok {
			f.Detections = append(f.Detections, shot.Detection{
				Class: shot.ClassBall, BBox: shot.BBox{p.X - 17, p.Y - 17, p.X + 17, p.Y + 17}, Confidence: 0.8,
			})
		}
		closed, err := tr.ProcessFrame(f)
		require.NoError(t, err)
		seqs = append(seqs, closed...)
	}
	if seq := tr.Flush(); seq != nil {
		seqs = append(seqs, seq)
	}
	require.Len(t, seqs, 1)
	return NewShotClassifier(DefaultConfig()).Classify(seqs[0])
}

func descent() map[int64]shot.Point {
	balls := map[int64]shot.Point{}
	for i := int64(0); i <= 8; i++ {
		balls[i] = shot.Point{X: 500, Y: 100 + 10*float64(i)}
	}
	balls[9] = shot.Point{X: 500, Y: 185}
	balls[10] = shot.Point{X: 500, Y: 200}
	balls[11] = shot.Point{X: 500, Y: 240}
	balls[12] = shot.Point{X: 500, Y: 290}
	balls[13] = shot.Point{X: 500, Y: 340}
	balls[14] = shot.Point{X: 500, Y: 390}
	return balls
}

func TestScenarioCompletePassThrough(t *testing.T) {
	t.Parallel()
	balls := descent()
	for i := int64(15); i <= 19; i++ {
		balls[i] = shot.Point{X: 500, Y: 390 + 30*float64(i-14)}
	}
	rec := trackAndClassify(t, balls, 19)
	assert.Equal(t, shot.OutcomeMade, rec.Outcome)
	assert.Equal(t, RuleCompletePass, rec.OutcomeReason)
}

func TestScenarioRimBounceOut(t *testing.T) {
	t.Parallel()
	balls := descent()
	balls[15] = shot.Point{X: 500, Y: 370}
	balls[16] = shot.Point{X: 500, Y: 330}
	balls[17] = shot.Point{X: 500, Y: 300}
	rec := trackAndClassify(t, balls, 17)
	assert.Equal(t, shot.OutcomeMissed, rec.Outcome)
	assert.Equal(t, RuleRimBounceOut, rec.OutcomeReason)
	assert.True(t, rec.BouncedBackOut)
}

func TestScenarioAlreadyInsideZone(t *testing.T) {
	t.Parallel()

	t.Run("short dwell", func(t *testing.T) {
		t.Parallel()
		balls := map[int64]shot.Point{
			3: {X: 500, Y: 250},
			4: {X: 500, Y: 290},
			5: {X: 500, Y: 330},
			6: {X: 500, Y: 370},
			7: {X: 500, Y: 400},
			8: {X: 500, Y: 430},
		}
		rec := trackAndClassify(t, balls, 8)
		assert.Equal(t, 1, rec.BottomCrossings)
		assert.Equal(t, shot.OutcomeMissed, rec.Outcome)
		assert.Equal(t, RuleNoTopCrossing, rec.OutcomeReason)
	})

	t.Run("long dwell on the rim", func(t *testing.T) {
		t.Parallel()
		balls := map[int64]shot.Point{}
		for i := int64(3); i < 53; i++ {
			balls[i] = shot.Point{X: 500, Y: 250}
		}
		for i, y := range []float64{290, 330, 370, 400, 430} {
			balls[53+int64(i)] = shot.Point{X: 500, Y: y}
		}
		rec := trackAndClassify(t, balls, 57)
		assert.Equal(t, 0, rec.TopCrossings)
		assert.Equal(t, 1, rec.BottomCrossings)
		assert.GreaterOrEqual(t, rec.InZoneFrames, DefaultConfig().MinInZoneSamples)
		assert.Equal(t, shot.OutcomeMissed, rec.Outcome)
		assert.Equal(t, RuleNoTopCrossing, rec.OutcomeReason)
		assert.InDelta(t, 0.70, rec.Confidence, 1e-9)
	})
}
