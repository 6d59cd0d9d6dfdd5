package classifier

import (
	"github.com/banshee-data/shotcall/internal/shot"
)

// Rule is one named predicate in the ordered decision table. Match reports
// whether the rule applies and the checks it evaluated.
type Rule struct {
	Name       string
	Outcome    shot.Outcome
	Match      func(f shot.Features, cfg Config) (bool, []shot.Evidence)
	Confidence func(cfg Config) float64
}

// Rule names, also used as the record's outcome reason.
const (
	RuleInsufficientSamples = "insufficient_samples"
	RuleWrongDepth          = "wrong_depth_or_direction"
	RuleNoTopCrossing       = "no_top_crossing"
	RuleCompletePass        = "complete_pass_through"
	RuleRimBounceOut        = "rim_bounce_out"
	RuleSwish               = "swish"
	RuleIncompletePass      = "incomplete_pass"

	// ReasonUnresolved is reported when no rule matches. DefaultRules
	// always match once the sample floor is met; custom tables may not.
	ReasonUnresolved = "unresolved"
)

func countCheck(name string, value, threshold int, passed bool) shot.Evidence {
	return shot.Evidence{Check: name, Value: float64(value), Threshold: float64(threshold), Passed: passed}
}

// DefaultRules is the decision table, evaluated in order; the first match
// wins. Crossing counts in Features only include depth-valid crossings, so
// a ball passing in front of the hoop never satisfies a crossing check.
var DefaultRules = []Rule{
	{
		Name:    RuleInsufficientSamples,
		Outcome: shot.OutcomeUndetermined,
		Match: func(f shot.Features, cfg Config) (bool, []shot.Evidence) {
			ok := f.Samples >= cfg.MinSamples
			return !ok, []shot.Evidence{countCheck("min_samples", f.Samples, cfg.MinSamples, ok)}
		},
		Confidence: func(cfg Config) float64 { return cfg.UndeterminedConfidence },
	},
	{
		Name:    RuleWrongDepth,
		Outcome: shot.OutcomeMissed,
		Match: func(f shot.Features, cfg Config) (bool, []shot.Evidence) {
			return f.TopCrossings == 0 && f.InvalidTopCrossings > 0, []shot.Evidence{
				countCheck("invalid_top_crossings", f.InvalidTopCrossings, 0, f.InvalidTopCrossings == 0),
			}
		},
		Confidence: func(cfg Config) float64 { return cfg.NoTopCrossingConfidence },
	},
	{
		// Bottom crossings and dwell do not matter here: a ball first seen
		// inside the zone never entered from above.
		Name:    RuleNoTopCrossing,
		Outcome: shot.OutcomeMissed,
		Match: func(f shot.Features, cfg Config) (bool, []shot.Evidence) {
			long := f.InZoneFrames >= cfg.MinInZoneSamples
			return f.TopCrossings == 0, []shot.Evidence{
				countCheck("top_crossings", f.TopCrossings, 1, f.TopCrossings >= 1),
				countCheck("in_zone_long_dwell", f.InZoneFrames, cfg.MinInZoneSamples, long),
			}
		},
		Confidence: func(cfg Config) float64 { return cfg.NoTopCrossingConfidence },
	},
	{
		Name:    RuleCompletePass,
		Outcome: shot.OutcomeMade,
		Match: func(f shot.Features, cfg Config) (bool, []shot.Evidence) {
			return f.TopCrossings >= 1 && f.BottomCrossings >= 1 && !f.BouncedBackOut, []shot.Evidence{
				countCheck("bottom_crossings", f.BottomCrossings, 1, f.BottomCrossings >= 1),
			}
		},
		Confidence: func(cfg Config) float64 { return cfg.CompletePassConfidence },
	},
	{
		Name:    RuleRimBounceOut,
		Outcome: shot.OutcomeMissed,
		Match: func(f shot.Features, cfg Config) (bool, []shot.Evidence) {
			return f.TopCrossings >= 1 && f.BottomCrossings >= 1 && f.BouncedBackOut, nil
		},
		Confidence: func(cfg Config) float64 { return cfg.RimBounceConfidence },
	},
	{
		Name:    RuleSwish,
		Outcome: shot.OutcomeMade,
		Match: func(f shot.Features, cfg Config) (bool, []shot.Evidence) {
			dwell := f.InZoneFrames >= cfg.MinSwishDwellFrames
			lo := f.AvgSizeRatio >= cfg.SwishMinSizeRatio
			hi := f.AvgSizeRatio <= cfg.SwishMaxSizeRatio
			return f.TopCrossings >= 1 && f.BottomCrossings == 0 && dwell && lo && hi, []shot.Evidence{
				countCheck("swish_dwell_frames", f.InZoneFrames, cfg.MinSwishDwellFrames, dwell),
				{Check: "swish_min_size_ratio", Value: f.AvgSizeRatio, Threshold: cfg.SwishMinSizeRatio, Passed: lo},
				{Check: "swish_max_size_ratio", Value: f.AvgSizeRatio, Threshold: cfg.SwishMaxSizeRatio, Passed: hi},
			}
		},
		Confidence: func(cfg Config) float64 { return cfg.SwishConfidence },
	},
	{
		Name:    RuleIncompletePass,
		Outcome: shot.OutcomeMissed,
		Match: func(f shot.Features, cfg Config) (bool, []shot.Evidence) {
			return f.TopCrossings >= 1, nil
		},
		Confidence: func(cfg Config) float64 { return cfg.IncompletePassConfidence },
	},
}

// RuleByName returns the named rule from DefaultRules.
func RuleByName(name string) (Rule, bool) {
	for _, r := range DefaultRules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}
