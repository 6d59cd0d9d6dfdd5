package fusion

import (
	"math"
	"sort"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/shot"
)

// MatcherConfig aligns the two streams.
type MatcherConfig struct {
	// ClockOffsetSeconds is subtracted from far-angle timestamps before
	// comparison. Positive when the far clock runs ahead.
	ClockOffsetSeconds float64
	// ToleranceSeconds is the widest accepted offset-corrected gap.
	ToleranceSeconds float64
}

// DefaultMatcherConfig returns the built-in defaults.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfigFromCalibration(nil)
}

// MatcherConfigFromCalibration builds a MatcherConfig from calibration.
func MatcherConfigFromCalibration(cfg *config.CalibrationConfig) MatcherConfig {
	m := cfg.GetMatching()
	return MatcherConfig{
		ClockOffsetSeconds: m.GetClockOffsetSeconds(),
		ToleranceSeconds:   m.GetToleranceSeconds(),
	}
}

// MatchResult is the matcher output. Pairs are in near time order; the
// unmatched lists are in (offset-corrected) time order.
type MatchResult struct {
	Pairs         []shot.MatchedPair
	UnmatchedNear []*shot.ShotRecord
	UnmatchedFar  []*shot.ShotRecord
}

// Matcher pairs near and far records.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher creates a matcher.
func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// AlignedTimestamp returns the record's timestamp on the near clock.
func AlignedTimestamp(r *shot.ShotRecord, angle shot.Angle, offset float64) float64 {
	if angle == shot.AngleFar {
		return r.TimestampSeconds - offset
	}
	return r.TimestampSeconds
}

// Match pairs each near record, in time order, with the nearest unclaimed
// far record within the tolerance window. Claims are never revisited.
// Equal distances go to the earlier far record. Input records are not
// modified.
func (m *Matcher) Match(near, far []*shot.ShotRecord) MatchResult {
	nearSorted := sortedByTime(near, shot.AngleNear, 0)
	farSorted := sortedByTime(far, shot.AngleFar, m.cfg.ClockOffsetSeconds)

	claimed := make([]bool, len(farSorted))
	var res MatchResult
	for _, n := range nearSorted {
		best := -1
		bestDiff := math.Inf(1)
		for j, f := range farSorted {
			if claimed[j] {
				continue
			}
			d := math.Abs(n.TimestampSeconds - AlignedTimestamp(f, shot.AngleFar, m.cfg.ClockOffsetSeconds))
			if d <= m.cfg.ToleranceSeconds && d < bestDiff {
				best, bestDiff = j, d
			}
		}
		if best < 0 {
			res.UnmatchedNear = append(res.UnmatchedNear, n)
			continue
		}
		claimed[best] = true
		res.Pairs = append(res.Pairs, shot.MatchedPair{Near: n, Far: farSorted[best], TimeDiff: bestDiff})
	}
	for j, f := range farSorted {
		if !claimed[j] {
			res.UnmatchedFar = append(res.UnmatchedFar, f)
		}
	}
	return res
}

func sortedByTime(records []*shot.ShotRecord, angle shot.Angle, offset float64) []*shot.ShotRecord {
	out := make([]*shot.ShotRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return AlignedTimestamp(out[i], angle, offset) < AlignedTimestamp(out[j], angle, offset)
	})
	return out
}
