package config

// Angle defaults. The size ratio band and bounce thresholds are calibration
// starting points for a court-side rig and must be re-fitted per camera.

// GetBallMinConfidence returns the ball detection floor or the default.
func (a *AngleCalibration) GetBallMinConfidence() float64 {
	if a == nil {
		return 0.35
	}
	return float64Or(a.BallMinConfidence, 0.35)
}

// GetHoopMinConfidence returns the hoop detection floor or the default.
func (a *AngleCalibration) GetHoopMinConfidence() float64 {
	if a == nil {
		return 0.5
	}
	return float64Or(a.HoopMinConfidence, 0.5)
}

func (a *AngleCalibration) GetZoneHalfWidth() float64 {
	if a == nil {
		return 80
	}
	return float64Or(a.ZoneHalfWidth, 80)
}

func (a *AngleCalibration) GetZoneTopExtent() float64 {
	if a == nil {
		return 110
	}
	return float64Or(a.ZoneTopExtent, 110)
}

func (a *AngleCalibration) GetZoneBottomExtent() float64 {
	if a == nil {
		return 80
	}
	return float64Or(a.ZoneBottomExtent, 80)
}

// GetHoopHoldFrames is how long the last hoop zone is reused while the hoop
// is undetected.
func (a *AngleCalibration) GetHoopHoldFrames() int {
	if a == nil {
		return 15
	}
	return intOr(a.HoopHoldFrames, 15)
}

func (a *AngleCalibration) GetMaxMissingBallFrames() int {
	if a == nil {
		return 10
	}
	return intOr(a.MaxMissingBallFrames, 10)
}

func (a *AngleCalibration) GetIdleTimeoutSeconds() float64 {
	if a == nil {
		return 3.0
	}
	return float64Or(a.IdleTimeoutSeconds, 3.0)
}

func (a *AngleCalibration) GetPostExitTrackingFrames() int {
	if a == nil {
		return 20
	}
	return intOr(a.PostExitTrackingFrames, 20)
}

func (a *AngleCalibration) GetCrossingRearmPx() float64 {
	if a == nil {
		return 10
	}
	return float64Or(a.CrossingRearmPx, 10)
}

func (a *AngleCalibration) GetBounceUpwardPx() float64 {
	if a == nil {
		return 50
	}
	return float64Or(a.BounceUpwardPx, 50)
}

func (a *AngleCalibration) GetBounceLateralPx() float64 {
	if a == nil {
		return 120
	}
	return float64Or(a.BounceLateralPx, 120)
}

func (a *AngleCalibration) GetMinSizeRatio() float64 {
	if a == nil {
		return 0.18
	}
	return float64Or(a.MinSizeRatio, 0.18)
}

func (a *AngleCalibration) GetMaxSizeRatio() float64 {
	if a == nil {
		return 0.28
	}
	return float64Or(a.MaxSizeRatio, 0.28)
}

func (a *AngleCalibration) GetMinSamples() int {
	if a == nil {
		return 3
	}
	return intOr(a.MinSamples, 3)
}

// GetMinInZoneSamples is the in-zone sample count at which a miss without a
// top crossing is flagged in the evidence trail as a long dwell (ball resting
// or rolling on the rim).
func (a *AngleCalibration) GetMinInZoneSamples() int {
	if a == nil {
		return 45
	}
	return intOr(a.MinInZoneSamples, 45)
}

func (a *AngleCalibration) GetMinSwishDwellFrames() int {
	if a == nil {
		return 8
	}
	return intOr(a.MinSwishDwellFrames, 8)
}

func (a *AngleCalibration) GetSwishMinSizeRatio() float64 {
	if a == nil {
		return 0.20
	}
	return float64Or(a.SwishMinSizeRatio, 0.20)
}

func (a *AngleCalibration) GetSwishMaxSizeRatio() float64 {
	if a == nil {
		return 0.26
	}
	return float64Or(a.SwishMaxSizeRatio, 0.26)
}

func (a *AngleCalibration) GetNoTopCrossingConfidence() float64 {
	if a == nil {
		return 0.70
	}
	return float64Or(a.NoTopCrossingConfidence, 0.70)
}

func (a *AngleCalibration) GetCompletePassConfidence() float64 {
	if a == nil {
		return 0.95
	}
	return float64Or(a.CompletePassConfidence, 0.95)
}

func (a *AngleCalibration) GetRimBounceConfidence() float64 {
	if a == nil {
		return 0.90
	}
	return float64Or(a.RimBounceConfidence, 0.90)
}

func (a *AngleCalibration) GetSwishConfidence() float64 {
	if a == nil {
		return 0.80
	}
	return float64Or(a.SwishConfidence, 0.80)
}

func (a *AngleCalibration) GetIncompletePassConfidence() float64 {
	if a == nil {
		return 0.70
	}
	return float64Or(a.IncompletePassConfidence, 0.70)
}

func (a *AngleCalibration) GetUndeterminedConfidence() float64 {
	if a == nil {
		return 0
	}
	return float64Or(a.UndeterminedConfidence, 0)
}

// GetClockOffsetSeconds returns the far-minus-near clock offset.
func (m *MatchingCalibration) GetClockOffsetSeconds() float64 {
	if m == nil {
		return 0
	}
	return float64Or(m.ClockOffsetSeconds, 0)
}

func (m *MatchingCalibration) GetToleranceSeconds() float64 {
	if m == nil {
		return 3.0
	}
	return float64Or(m.ToleranceSeconds, 3.0)
}

func (f *FusionCalibration) GetNearAgreementFloor() float64 {
	if f == nil {
		return 0.65
	}
	return float64Or(f.NearAgreementFloor, 0.65)
}

func (f *FusionCalibration) GetFarAgreementFloor() float64 {
	if f == nil {
		return 0.65
	}
	return float64Or(f.FarAgreementFloor, 0.65)
}

func (f *FusionCalibration) GetAgreementBoost() float64 {
	if f == nil {
		return 1.15
	}
	return float64Or(f.AgreementBoost, 1.15)
}

func (f *FusionCalibration) GetMaxFusedConfidence() float64 {
	if f == nil {
		return 0.98
	}
	return float64Or(f.MaxFusedConfidence, 0.98)
}

func (f *FusionCalibration) GetDisagreementPenalty() float64 {
	if f == nil {
		return 0.85
	}
	return float64Or(f.DisagreementPenalty, 0.85)
}

func (f *FusionCalibration) GetSingletonAcceptanceFloor() float64 {
	if f == nil {
		return 0.75
	}
	return float64Or(f.SingletonAcceptanceFloor, 0.75)
}

func (f *FusionCalibration) GetSingletonPenalty() float64 {
	if f == nil {
		return 0.9
	}
	return float64Or(f.SingletonPenalty, 0.9)
}

// GetPriorityStream is the stream that wins exact ties.
func (f *FusionCalibration) GetPriorityStream() string {
	if f == nil || f.PriorityStream == nil || *f.PriorityStream == "" {
		return "near"
	}
	return *f.PriorityStream
}

func (f *FusionCalibration) GetScoreEpsilon() float64 {
	if f == nil {
		return 1e-9
	}
	return float64Or(f.ScoreEpsilon, 1e-9)
}

func (f *FusionCalibration) GetRimContactUpwardPx() float64 {
	if f == nil {
		return 20
	}
	return float64Or(f.RimContactUpwardPx, 20)
}

func (f *FusionCalibration) GetCleanArcMinSwooshSpeed() float64 {
	if f == nil {
		return 150
	}
	return float64Or(f.CleanArcMinSwooshSpeed, 150)
}

// GetPatternWeights merges configured pattern weights over the defaults.
func (f *FusionCalibration) GetPatternWeights() map[string]StreamWeights {
	out := DefaultPatternWeights()
	if f == nil {
		return out
	}
	for k, v := range f.PatternWeights {
		out[k] = v
	}
	return out
}

// GetSignalWeights merges configured signal weights over the defaults.
func (f *FusionCalibration) GetSignalWeights() map[string]float64 {
	out := DefaultSignalWeights()
	if f == nil {
		return out
	}
	for k, v := range f.SignalWeights {
		out[k] = v
	}
	return out
}
