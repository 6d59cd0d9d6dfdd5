package tracker

import (
	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/shot"
)

// Config holds the tracker thresholds for one camera angle. It is copied into
// the Tracker at construction.
type Config struct {
	Angle shot.Angle

	BallMinConfidence float64
	HoopMinConfidence float64

	Zone shot.ZoneExtents

	// HoopHoldFrames is how many consecutive hoop-less frames reuse the last
	// zone before zone membership is suspended.
	HoopHoldFrames int
	// MaxMissingBallFrames is the longest tolerated run of ball-less frames
	// inside an open sequence.
	MaxMissingBallFrames int
	// IdleTimeoutSeconds closes a sequence with no in-zone sample for this long.
	IdleTimeoutSeconds float64
	// PostExitTrackingFrames bounds bounce measurement after the first valid
	// bottom crossing; the sequence closes once it has elapsed.
	PostExitTrackingFrames int
	// CrossingRearmPx is how far above a boundary the ball must rise before
	// another crossing of that boundary can fire.
	CrossingRearmPx float64

	BounceUpwardPx  float64
	BounceLateralPx float64

	// Size ratio depth band for valid crossings.
	MinSizeRatio float64
	MaxSizeRatio float64
}

// DefaultConfig returns the built-in defaults for angle.
func DefaultConfig(angle shot.Angle) Config {
	return ConfigFromCalibration(nil, angle)
}

// ConfigFromCalibration builds a Config from the angle's calibration section.
// A nil cfg yields the defaults.
func ConfigFromCalibration(cfg *config.CalibrationConfig, angle shot.Angle) Config {
	a := cfg.Angle(string(angle))
	return Config{
		Angle:             angle,
		BallMinConfidence: a.GetBallMinConfidence(),
		HoopMinConfidence: a.GetHoopMinConfidence(),
		Zone: shot.ZoneExtents{
			HalfWidth:    a.GetZoneHalfWidth(),
			TopExtent:    a.GetZoneTopExtent(),
			BottomExtent: a.GetZoneBottomExtent(),
		},
		HoopHoldFrames:         a.GetHoopHoldFrames(),
		MaxMissingBallFrames:   a.GetMaxMissingBallFrames(),
		IdleTimeoutSeconds:     a.GetIdleTimeoutSeconds(),
		PostExitTrackingFrames: a.GetPostExitTrackingFrames(),
		CrossingRearmPx:        a.GetCrossingRearmPx(),
		BounceUpwardPx:         a.GetBounceUpwardPx(),
		BounceLateralPx:        a.GetBounceLateralPx(),
		MinSizeRatio:           a.GetMinSizeRatio(),
		MaxSizeRatio:           a.GetMaxSizeRatio(),
	}
}

// ValidRatio reports whether ratio lies in the inclusive depth band.
func (c Config) ValidRatio(ratio float64) bool {
	return ratio >= c.MinSizeRatio && ratio <= c.MaxSizeRatio
}
