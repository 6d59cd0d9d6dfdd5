package fusion

import (
	"math"

	"github.com/banshee-data/shotcall/internal/shot"
)

// Signal names one piece of evidence a stream offers for its own vote.
type Signal string

const (
	SignalCrossingStrength Signal = "crossing_strength"
	SignalBounceIndicator  Signal = "bounce_indicator"
	SignalDepthQuality     Signal = "depth_quality"
	SignalDwellConsistency Signal = "dwell_consistency"
)

// Signals is the fixed signal set in evaluation order.
var Signals = []Signal{
	SignalCrossingStrength,
	SignalBounceIndicator,
	SignalDepthQuality,
	SignalDwellConsistency,
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func indicator(n int) float64 {
	if n > 0 {
		return 1
	}
	return 0
}

// signalValue measures in [0, 1] how strongly rec's own features support
// the outcome it voted for.
func signalValue(s Signal, rec *shot.ShotRecord, sc StreamCalibration, cfg ResolverConfig) float64 {
	made := rec.Outcome == shot.OutcomeMade
	switch s {
	case SignalCrossingStrength:
		if made {
			return 0.5*indicator(rec.TopCrossings) + 0.5*indicator(rec.BottomCrossings)
		}
		switch {
		case rec.TopCrossings == 0, rec.BouncedBackOut:
			return 1
		case rec.BottomCrossings == 0:
			return 0.6
		}
		return 0.2

	case SignalBounceIndicator:
		bounce := 1.0
		if !rec.BouncedBackOut && sc.BounceUpwardPx > 0 {
			bounce = clamp01(rec.BounceUpwardPx / sc.BounceUpwardPx)
		}
		if made {
			return 1 - bounce
		}
		return bounce

	case SignalDepthQuality:
		if rec.AvgSizeRatio <= 0 || sc.MaxSizeRatio <= sc.MinSizeRatio {
			return 0
		}
		mid := (sc.MinSizeRatio + sc.MaxSizeRatio) / 2
		half := (sc.MaxSizeRatio - sc.MinSizeRatio) / 2
		quality := clamp01(1 - math.Abs(rec.AvgSizeRatio-mid)/half)
		valid := rec.TopCrossings + rec.BottomCrossings
		if total := valid + rec.InvalidCrossings; total > 0 {
			quality *= float64(valid) / float64(total)
		}
		return quality * clamp01(rec.Confidence)

	case SignalDwellConsistency:
		ref := cfg.CleanArcMinSwooshSpeed
		if ref <= 0 {
			return 0
		}
		if made {
			return clamp01(rec.SwooshSpeed / ref)
		}
		if rec.SwooshSpeed == 0 {
			return 0.5
		}
		return 1 - clamp01(rec.SwooshSpeed/(2*ref))
	}
	return 0
}
