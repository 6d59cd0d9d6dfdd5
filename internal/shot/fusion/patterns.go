package fusion

import (
	"math"

	"github.com/banshee-data/shotcall/internal/shot"
)

// patternRule is one entry of the ordered shot-pattern table.
type patternRule struct {
	pattern shot.ShotPattern
	match   func(near, far *shot.ShotRecord, cfg ResolverConfig) (bool, []shot.Evidence)
}

// patternRules classifies a disagreeing pair; the first match wins and the
// last entry always matches. Adding a pattern means adding an entry here and
// a weight in the calibration, nothing else.
var patternRules = []patternRule{
	{
		pattern: shot.PatternRimContact,
		match: func(near, far *shot.ShotRecord, cfg ResolverConfig) (bool, []shot.Evidence) {
			up := math.Max(near.BounceUpwardPx, far.BounceUpwardPx)
			rim := up >= cfg.RimContactUpwardPx
			bounced := near.BouncedBackOut || far.BouncedBackOut
			return rim || bounced, []shot.Evidence{
				{Check: "pattern_rim_contact_upward_px", Value: up, Threshold: cfg.RimContactUpwardPx, Passed: rim},
			}
		},
	},
	{
		pattern: shot.PatternCleanArc,
		match: func(near, far *shot.ShotRecord, cfg ResolverConfig) (bool, []shot.Evidence) {
			slowest := math.Min(near.SwooshSpeed, far.SwooshSpeed)
			fast := slowest >= cfg.CleanArcMinSwooshSpeed
			entered := near.TopCrossings >= 1 && far.TopCrossings >= 1
			return fast && entered, []shot.Evidence{
				{Check: "pattern_clean_arc_swoosh_speed", Value: slowest, Threshold: cfg.CleanArcMinSwooshSpeed, Passed: fast},
			}
		},
	},
	{
		pattern: shot.PatternAmbiguous,
		match: func(*shot.ShotRecord, *shot.ShotRecord, ResolverConfig) (bool, []shot.Evidence) {
			return true, nil
		},
	},
}

// ClassifyPattern returns the coarse pattern of a pair and the checks that
// produced it.
func ClassifyPattern(near, far *shot.ShotRecord, cfg ResolverConfig) (shot.ShotPattern, []shot.Evidence) {
	var evidence []shot.Evidence
	for _, r := range patternRules {
		ok, ev := r.match(near, far, cfg)
		evidence = append(evidence, ev...)
		if ok {
			return r.pattern, evidence
		}
	}
	return shot.PatternAmbiguous, evidence
}
