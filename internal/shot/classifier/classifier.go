package classifier

import (
	"fmt"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/shot"
)

// ModelVersion identifies the rule table in emitted records.
const ModelVersion = "rule-based-v1.0"

// Config holds the classifier thresholds and per-rule confidences for one
// camera angle.
type Config struct {
	MinSamples          int
	MinInZoneSamples    int
	MinSwishDwellFrames int
	SwishMinSizeRatio   float64
	SwishMaxSizeRatio   float64

	NoTopCrossingConfidence  float64
	CompletePassConfidence   float64
	RimBounceConfidence      float64
	SwishConfidence          float64
	IncompletePassConfidence float64
	UndeterminedConfidence   float64
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromCalibration(nil, shot.AngleNear)
}

// ConfigFromCalibration builds a Config from the angle's calibration section.
func ConfigFromCalibration(cfg *config.CalibrationConfig, angle shot.Angle) Config {
	a := cfg.Angle(string(angle))
	return Config{
		MinSamples:               a.GetMinSamples(),
		MinInZoneSamples:         a.GetMinInZoneSamples(),
		MinSwishDwellFrames:      a.GetMinSwishDwellFrames(),
		SwishMinSizeRatio:        a.GetSwishMinSizeRatio(),
		SwishMaxSizeRatio:        a.GetSwishMaxSizeRatio(),
		NoTopCrossingConfidence:  a.GetNoTopCrossingConfidence(),
		CompletePassConfidence:   a.GetCompletePassConfidence(),
		RimBounceConfidence:      a.GetRimBounceConfidence(),
		SwishConfidence:          a.GetSwishConfidence(),
		IncompletePassConfidence: a.GetIncompletePassConfidence(),
		UndeterminedConfidence:   a.GetUndeterminedConfidence(),
	}
}

// clampConfidence clamps a confidence value to [0, 1].
func clampConfidence(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// ShotClassifier maps finalized sequences to records with an ordered rule
// table. It holds no mutable state and is safe for concurrent use.
type ShotClassifier struct {
	ModelVersion string
	cfg          Config
	rules        []Rule
}

// NewShotClassifier creates a classifier over DefaultRules.
func NewShotClassifier(cfg Config) *ShotClassifier {
	return NewShotClassifierWithRules(cfg, DefaultRules)
}

// NewShotClassifierWithRules creates a classifier over a custom table.
func NewShotClassifierWithRules(cfg Config, rules []Rule) *ShotClassifier {
	r := make([]Rule, len(rules))
	copy(r, rules)
	return &ShotClassifier{ModelVersion: ModelVersion, cfg: cfg, rules: r}
}

// Classify produces the record for one finalized sequence. The outcome is
// always set; sequences no rule can decide are undetermined.
func (c *ShotClassifier) Classify(seq *shot.ShotSequence) *shot.ShotRecord {
	rec := &shot.ShotRecord{
		ID:               shot.RecordID(seq.Angle, seq.StartFrame, seq.EndFrame),
		Angle:            seq.Angle,
		TimestampSeconds: seq.MidTimestamp(),
		StartFrame:       seq.StartFrame,
		EndFrame:         seq.EndFrame,
		Model:            c.ModelVersion,
		CloseReason:      seq.CloseReason,
		Incomplete:       seq.Incomplete,
		Features:         seq.Features,
		Crossings:        append([]shot.Crossing(nil), seq.Crossings...),
		Evidence:         append([]shot.Evidence(nil), seq.Evidence...),
	}

	rec.Outcome = shot.OutcomeUndetermined
	rec.OutcomeReason = ReasonUnresolved
	rec.Confidence = clampConfidence(c.cfg.UndeterminedConfidence)
	for i, rule := range c.rules {
		matched, evidence := rule.Match(seq.Features, c.cfg)
		for _, e := range evidence {
			e.Check = fmt.Sprintf("rule%d_%s:%s", i, rule.Name, e.Check)
			rec.Evidence = append(rec.Evidence, e)
		}
		if matched {
			rec.Outcome = rule.Outcome
			rec.OutcomeReason = rule.Name
			rec.Confidence = clampConfidence(rule.Confidence(c.cfg))
			break
		}
	}

	monitoring.Logf("[classifier %s] frames %d-%d: %s (%s, conf=%.2f)",
		rec.Angle, rec.StartFrame, rec.EndFrame, rec.Outcome, rec.OutcomeReason, rec.Confidence)
	return rec
}
