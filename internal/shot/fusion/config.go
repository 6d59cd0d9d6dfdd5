package fusion

import (
	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/shot"
)

// StreamWeights is the reliability of each stream's vote for one pattern.
type StreamWeights struct {
	Near float64
	Far  float64
}

// For returns the weight of angle.
func (w StreamWeights) For(angle shot.Angle) float64 {
	if angle == shot.AngleFar {
		return w.Far
	}
	return w.Near
}

// StreamCalibration carries the per-angle thresholds the disagreement
// signals are normalised against.
type StreamCalibration struct {
	BounceUpwardPx float64
	MinSizeRatio   float64
	MaxSizeRatio   float64
}

// ResolverConfig holds every resolver threshold. Maps are copied by
// NewResolver and never mutated afterwards.
type ResolverConfig struct {
	NearAgreementFloor float64
	FarAgreementFloor  float64
	AgreementBoost     float64
	MaxFusedConfidence float64

	DisagreementPenalty float64
	PriorityStream      shot.Angle
	ScoreEpsilon        float64

	SingletonAcceptanceFloor float64
	SingletonPenalty         float64

	// Pattern classification
	RimContactUpwardPx     float64
	CleanArcMinSwooshSpeed float64

	PatternWeights map[shot.ShotPattern]StreamWeights
	SignalWeights  map[Signal]float64
	Streams        map[shot.Angle]StreamCalibration

	// ClockOffsetSeconds places far-only verdicts on the near clock.
	ClockOffsetSeconds float64
}

// DefaultResolverConfig returns the built-in defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfigFromCalibration(nil)
}

// ResolverConfigFromCalibration builds a ResolverConfig from calibration.
func ResolverConfigFromCalibration(cfg *config.CalibrationConfig) ResolverConfig {
	f := cfg.GetFusion()
	rc := ResolverConfig{
		NearAgreementFloor:       f.GetNearAgreementFloor(),
		FarAgreementFloor:        f.GetFarAgreementFloor(),
		AgreementBoost:           f.GetAgreementBoost(),
		MaxFusedConfidence:       f.GetMaxFusedConfidence(),
		DisagreementPenalty:      f.GetDisagreementPenalty(),
		PriorityStream:           shot.Angle(f.GetPriorityStream()),
		ScoreEpsilon:             f.GetScoreEpsilon(),
		SingletonAcceptanceFloor: f.GetSingletonAcceptanceFloor(),
		SingletonPenalty:         f.GetSingletonPenalty(),
		RimContactUpwardPx:       f.GetRimContactUpwardPx(),
		CleanArcMinSwooshSpeed:   f.GetCleanArcMinSwooshSpeed(),
		PatternWeights:           map[shot.ShotPattern]StreamWeights{},
		SignalWeights:            map[Signal]float64{},
		Streams:                  map[shot.Angle]StreamCalibration{},
		ClockOffsetSeconds:       cfg.GetMatching().GetClockOffsetSeconds(),
	}
	for name, w := range f.GetPatternWeights() {
		rc.PatternWeights[shot.ShotPattern(name)] = StreamWeights{Near: w.Near, Far: w.Far}
	}
	for name, w := range f.GetSignalWeights() {
		rc.SignalWeights[Signal(name)] = w
	}
	for _, angle := range []shot.Angle{shot.AngleNear, shot.AngleFar} {
		a := cfg.Angle(string(angle))
		rc.Streams[angle] = StreamCalibration{
			BounceUpwardPx: a.GetBounceUpwardPx(),
			MinSizeRatio:   a.GetMinSizeRatio(),
			MaxSizeRatio:   a.GetMaxSizeRatio(),
		}
	}
	return rc
}

// AgreementFloor returns the agreement floor of angle.
func (c ResolverConfig) AgreementFloor(angle shot.Angle) float64 {
	if angle == shot.AngleFar {
		return c.FarAgreementFloor
	}
	return c.NearAgreementFloor
}

func (c ResolverConfig) clone() ResolverConfig {
	out := c
	out.PatternWeights = make(map[shot.ShotPattern]StreamWeights, len(c.PatternWeights))
	for k, v := range c.PatternWeights {
		out.PatternWeights[k] = v
	}
	out.SignalWeights = make(map[Signal]float64, len(c.SignalWeights))
	for k, v := range c.SignalWeights {
		out.SignalWeights[k] = v
	}
	out.Streams = make(map[shot.Angle]StreamCalibration, len(c.Streams))
	for k, v := range c.Streams {
		out.Streams[k] = v
	}
	return out
}
