package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultConfigPath is the path to the canonical calibration defaults file.
const DefaultConfigPath = "config/calibration.defaults.json"

// CurrentVersion is the calibration schema version written by this build.
const CurrentVersion = "1"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid calibration config")

// CalibrationConfig is the versioned set of thresholds for one run. Every
// field is a pointer so partial JSON files are safe; the Get* accessors
// supply defaults for anything left unset. Components copy the values they
// need at construction and never see this type again.
type CalibrationConfig struct {
	Version  *string              `json:"version,omitempty"`
	Name     *string              `json:"name,omitempty"`
	Angles   *AnglesCalibration   `json:"angles,omitempty"`
	Matching *MatchingCalibration `json:"matching,omitempty"`
	Fusion   *FusionCalibration   `json:"fusion,omitempty"`
}

// AnglesCalibration holds one calibration per camera rig.
type AnglesCalibration struct {
	Near *AngleCalibration `json:"near,omitempty"`
	Far  *AngleCalibration `json:"far,omitempty"`
}

// AngleCalibration covers the tracker and classifier for one camera angle.
type AngleCalibration struct {
	// Detector confidence floors
	BallMinConfidence *float64 `json:"ball_min_confidence,omitempty"`
	HoopMinConfidence *float64 `json:"hoop_min_confidence,omitempty"`

	// Zone geometry (pixels)
	ZoneHalfWidth    *float64 `json:"zone_half_width,omitempty"`
	ZoneTopExtent    *float64 `json:"zone_top_extent,omitempty"`
	ZoneBottomExtent *float64 `json:"zone_bottom_extent,omitempty"`

	// Sequence lifecycle
	HoopHoldFrames         *int     `json:"hoop_hold_frames,omitempty"`
	MaxMissingBallFrames   *int     `json:"max_missing_ball_frames,omitempty"`
	IdleTimeoutSeconds     *float64 `json:"idle_timeout_seconds,omitempty"`
	PostExitTrackingFrames *int     `json:"post_exit_tracking_frames,omitempty"`
	CrossingRearmPx        *float64 `json:"crossing_rearm_px,omitempty"`

	// Bounce and depth
	BounceUpwardPx  *float64 `json:"bounce_upward_px,omitempty"`
	BounceLateralPx *float64 `json:"bounce_lateral_px,omitempty"`
	MinSizeRatio    *float64 `json:"min_size_ratio,omitempty"`
	MaxSizeRatio    *float64 `json:"max_size_ratio,omitempty"`

	// Classifier
	MinSamples          *int     `json:"min_samples,omitempty"`
	MinInZoneSamples    *int     `json:"min_in_zone_samples,omitempty"`
	MinSwishDwellFrames *int     `json:"min_swish_dwell_frames,omitempty"`
	SwishMinSizeRatio   *float64 `json:"swish_min_size_ratio,omitempty"`
	SwishMaxSizeRatio   *float64 `json:"swish_max_size_ratio,omitempty"`

	// Rule confidences
	NoTopCrossingConfidence  *float64 `json:"no_top_crossing_confidence,omitempty"`
	CompletePassConfidence   *float64 `json:"complete_pass_confidence,omitempty"`
	RimBounceConfidence      *float64 `json:"rim_bounce_confidence,omitempty"`
	SwishConfidence          *float64 `json:"swish_confidence,omitempty"`
	IncompletePassConfidence *float64 `json:"incomplete_pass_confidence,omitempty"`
	UndeterminedConfidence   *float64 `json:"undetermined_confidence,omitempty"`
}

// MatchingCalibration aligns the two streams.
type MatchingCalibration struct {
	// ClockOffsetSeconds is subtracted from far-angle timestamps.
	ClockOffsetSeconds *float64 `json:"clock_offset_seconds,omitempty"`
	ToleranceSeconds   *float64 `json:"tolerance_seconds,omitempty"`
}

// StreamWeights is the reliability of each stream for one shot pattern.
type StreamWeights struct {
	Near float64 `json:"near"`
	Far  float64 `json:"far"`
}

// FusionCalibration covers the resolver.
type FusionCalibration struct {
	NearAgreementFloor       *float64                 `json:"near_agreement_floor,omitempty"`
	FarAgreementFloor        *float64                 `json:"far_agreement_floor,omitempty"`
	AgreementBoost           *float64                 `json:"agreement_boost,omitempty"`
	MaxFusedConfidence       *float64                 `json:"max_fused_confidence,omitempty"`
	DisagreementPenalty      *float64                 `json:"disagreement_penalty,omitempty"`
	SingletonAcceptanceFloor *float64                 `json:"singleton_acceptance_floor,omitempty"`
	SingletonPenalty         *float64                 `json:"singleton_penalty,omitempty"`
	PriorityStream           *string                  `json:"priority_stream,omitempty"`
	ScoreEpsilon             *float64                 `json:"score_epsilon,omitempty"`
	RimContactUpwardPx       *float64                 `json:"rim_contact_upward_px,omitempty"`
	CleanArcMinSwooshSpeed   *float64                 `json:"clean_arc_min_swoosh_speed,omitempty"`
	PatternWeights           map[string]StreamWeights `json:"pattern_weights,omitempty"`
	SignalWeights            map[string]float64       `json:"signal_weights,omitempty"`
}

// Pattern and signal names understood by the resolver.
const (
	PatternRimContact = "rim_contact"
	PatternCleanArc   = "clean_arc"
	PatternAmbiguous  = "ambiguous"

	SignalCrossingStrength = "crossing_strength"
	SignalBounceIndicator  = "bounce_indicator"
	SignalDepthQuality     = "depth_quality"
	SignalDwellConsistency = "dwell_consistency"
)

// DefaultPatternWeights favour the near angle for clean arcs and the far
// angle, which sees the rim edge-on, for rim contact.
func DefaultPatternWeights() map[string]StreamWeights {
	return map[string]StreamWeights{
		PatternCleanArc:   {Near: 0.60, Far: 0.40},
		PatternRimContact: {Near: 0.35, Far: 0.65},
		PatternAmbiguous:  {Near: 0.55, Far: 0.45},
	}
}

// DefaultSignalWeights returns the default disagreement signal weights.
func DefaultSignalWeights() map[string]float64 {
	return map[string]float64{
		SignalCrossingStrength: 0.35,
		SignalBounceIndicator:  0.30,
		SignalDepthQuality:     0.20,
		SignalDwellConsistency: 0.15,
	}
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

func float64Or(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// EmptyCalibrationConfig returns a config with every field unset.
func EmptyCalibrationConfig() *CalibrationConfig {
	return &CalibrationConfig{}
}

// LoadCalibrationConfig loads and validates a calibration file. The file must
// have a .json extension and be under 1MB. Fields omitted from the file keep
// their defaults.
func LoadCalibrationConfig(path string) (*CalibrationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseCalibrationConfig(data)
}

// ParseCalibrationConfig parses and validates calibration JSON.
func ParseCalibrationConfig(data []byte) (*CalibrationConfig, error) {
	cfg := EmptyCalibrationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// a parent. Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *CalibrationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/shot/tracker/
		"../../../../" + DefaultConfigPath, // from internal/shot/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadCalibrationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// GetVersion returns the schema version or CurrentVersion.
func (c *CalibrationConfig) GetVersion() string {
	if c == nil || c.Version == nil || *c.Version == "" {
		return CurrentVersion
	}
	return *c.Version
}

// GetName returns the parameter set name or "default".
func (c *CalibrationConfig) GetName() string {
	if c == nil || c.Name == nil || *c.Name == "" {
		return "default"
	}
	return *c.Name
}

// Angle returns the calibration for the named angle. The result may be nil;
// its Get* accessors still return defaults.
func (c *CalibrationConfig) Angle(name string) *AngleCalibration {
	if c == nil || c.Angles == nil {
		return nil
	}
	switch name {
	case "near":
		return c.Angles.Near
	case "far":
		return c.Angles.Far
	}
	return nil
}

// GetMatching returns the matching section, possibly nil.
func (c *CalibrationConfig) GetMatching() *MatchingCalibration {
	if c == nil {
		return nil
	}
	return c.Matching
}

// GetFusion returns the fusion section, possibly nil.
func (c *CalibrationConfig) GetFusion() *FusionCalibration {
	if c == nil {
		return nil
	}
	return c.Fusion
}

// Validate checks every set value.
func (c *CalibrationConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.Angles != nil {
		if err := c.Angles.Near.validate("near"); err != nil {
			return err
		}
		if err := c.Angles.Far.validate("far"); err != nil {
			return err
		}
	}
	if err := c.Matching.validate(); err != nil {
		return err
	}
	return c.Fusion.validate()
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func checkProbability(name string, p *float64) error {
	if p != nil && (*p < 0 || *p > 1) {
		return invalid("%s must be between 0 and 1, got %f", name, *p)
	}
	return nil
}

func checkPositive(name string, p *float64) error {
	if p != nil && *p <= 0 {
		return invalid("%s must be positive, got %f", name, *p)
	}
	return nil
}

func checkNonNegativeInt(name string, p *int) error {
	if p != nil && *p < 0 {
		return invalid("%s must be non-negative, got %d", name, *p)
	}
	return nil
}

func (a *AngleCalibration) validate(angle string) error {
	if a == nil {
		return nil
	}
	probs := map[string]*float64{
		"ball_min_confidence":        a.BallMinConfidence,
		"hoop_min_confidence":        a.HoopMinConfidence,
		"no_top_crossing_confidence": a.NoTopCrossingConfidence,
		"complete_pass_confidence":   a.CompletePassConfidence,
		"rim_bounce_confidence":      a.RimBounceConfidence,
		"swish_confidence":           a.SwishConfidence,
		"incomplete_pass_confidence": a.IncompletePassConfidence,
		"undetermined_confidence":    a.UndeterminedConfidence,
	}
	positives := map[string]*float64{
		"zone_half_width":      a.ZoneHalfWidth,
		"zone_top_extent":      a.ZoneTopExtent,
		"zone_bottom_extent":   a.ZoneBottomExtent,
		"idle_timeout_seconds": a.IdleTimeoutSeconds,
		"bounce_upward_px":     a.BounceUpwardPx,
		"bounce_lateral_px":    a.BounceLateralPx,
		"min_size_ratio":       a.MinSizeRatio,
		"max_size_ratio":       a.MaxSizeRatio,
	}
	ints := map[string]*int{
		"hoop_hold_frames":          a.HoopHoldFrames,
		"max_missing_ball_frames":   a.MaxMissingBallFrames,
		"post_exit_tracking_frames": a.PostExitTrackingFrames,
		"min_samples":               a.MinSamples,
		"min_in_zone_samples":       a.MinInZoneSamples,
		"min_swish_dwell_frames":    a.MinSwishDwellFrames,
	}
	for _, name := range sortedKeys(probs) {
		if err := checkProbability(angle+"."+name, probs[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(positives) {
		if err := checkPositive(angle+"."+name, positives[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(ints) {
		if err := checkNonNegativeInt(angle+"."+name, ints[name]); err != nil {
			return err
		}
	}
	if a.CrossingRearmPx != nil && *a.CrossingRearmPx < 0 {
		return invalid("%s.crossing_rearm_px must be non-negative, got %f", angle, *a.CrossingRearmPx)
	}

	minRatio, maxRatio := a.GetMinSizeRatio(), a.GetMaxSizeRatio()
	if minRatio >= maxRatio {
		return invalid("%s size ratio band is empty: [%f, %f]", angle, minRatio, maxRatio)
	}
	swishMin, swishMax := a.GetSwishMinSizeRatio(), a.GetSwishMaxSizeRatio()
	if swishMin > swishMax || swishMin < minRatio || swishMax > maxRatio {
		return invalid("%s swish size ratio band [%f, %f] must lie within [%f, %f]",
			angle, swishMin, swishMax, minRatio, maxRatio)
	}
	return nil
}

func (m *MatchingCalibration) validate() error {
	if m == nil {
		return nil
	}
	if m.ToleranceSeconds != nil && *m.ToleranceSeconds < 0 {
		return invalid("tolerance_seconds must be non-negative, got %f", *m.ToleranceSeconds)
	}
	return nil
}

func (f *FusionCalibration) validate() error {
	if f == nil {
		return nil
	}
	probs := map[string]*float64{
		"near_agreement_floor":       f.NearAgreementFloor,
		"far_agreement_floor":        f.FarAgreementFloor,
		"max_fused_confidence":       f.MaxFusedConfidence,
		"disagreement_penalty":       f.DisagreementPenalty,
		"singleton_acceptance_floor": f.SingletonAcceptanceFloor,
		"singleton_penalty":          f.SingletonPenalty,
	}
	for _, name := range sortedKeys(probs) {
		if err := checkProbability(name, probs[name]); err != nil {
			return err
		}
	}
	if f.AgreementBoost != nil && *f.AgreementBoost < 1 {
		return invalid("agreement_boost must be at least 1, got %f", *f.AgreementBoost)
	}
	if f.ScoreEpsilon != nil && *f.ScoreEpsilon < 0 {
		return invalid("score_epsilon must be non-negative, got %f", *f.ScoreEpsilon)
	}
	if err := checkPositive("rim_contact_upward_px", f.RimContactUpwardPx); err != nil {
		return err
	}
	if err := checkPositive("clean_arc_min_swoosh_speed", f.CleanArcMinSwooshSpeed); err != nil {
		return err
	}
	if f.PriorityStream != nil && *f.PriorityStream != "near" && *f.PriorityStream != "far" {
		return invalid("priority_stream must be near or far, got %q", *f.PriorityStream)
	}
	known := DefaultPatternWeights()
	for name, w := range f.PatternWeights {
		if _, ok := known[name]; !ok {
			return invalid("unknown shot pattern %q in pattern_weights", name)
		}
		if w.Near < 0 || w.Far < 0 || w.Near+w.Far == 0 {
			return invalid("pattern_weights[%s] must be non-negative and not both zero", name)
		}
	}
	signals := DefaultSignalWeights()
	for name, w := range f.SignalWeights {
		if _, ok := signals[name]; !ok {
			return invalid("unknown signal %q in signal_weights", name)
		}
		if w < 0 {
			return invalid("signal_weights[%s] must be non-negative, got %f", name, w)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolved returns a copy with every field populated from the Get*
// accessors, so two configs with the same effective values serialize
// identically.
func (c *CalibrationConfig) Resolved() *CalibrationConfig {
	return &CalibrationConfig{
		Version: ptrString(c.GetVersion()),
		Name:    ptrString(c.GetName()),
		Angles: &AnglesCalibration{
			Near: c.Angle("near").resolved(),
			Far:  c.Angle("far").resolved(),
		},
		Matching: &MatchingCalibration{
			ClockOffsetSeconds: ptrFloat64(c.GetMatching().GetClockOffsetSeconds()),
			ToleranceSeconds:   ptrFloat64(c.GetMatching().GetToleranceSeconds()),
		},
		Fusion: c.GetFusion().resolved(),
	}
}

// Fingerprint is the SHA-256 of the resolved config's JSON. The name is
// excluded so renaming a parameter set keeps its fingerprint.
func (c *CalibrationConfig) Fingerprint() string {
	r := c.Resolved()
	r.Name = nil
	data, err := json.Marshal(r)
	if err != nil {
		// Resolved contains only plain values and maps with string keys.
		panic(fmt.Sprintf("marshal resolved calibration: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (a *AngleCalibration) resolved() *AngleCalibration {
	return &AngleCalibration{
		BallMinConfidence:        ptrFloat64(a.GetBallMinConfidence()),
		HoopMinConfidence:        ptrFloat64(a.GetHoopMinConfidence()),
		ZoneHalfWidth:            ptrFloat64(a.GetZoneHalfWidth()),
		ZoneTopExtent:            ptrFloat64(a.GetZoneTopExtent()),
		ZoneBottomExtent:         ptrFloat64(a.GetZoneBottomExtent()),
		HoopHoldFrames:           ptrInt(a.GetHoopHoldFrames()),
		MaxMissingBallFrames:     ptrInt(a.GetMaxMissingBallFrames()),
		IdleTimeoutSeconds:       ptrFloat64(a.GetIdleTimeoutSeconds()),
		PostExitTrackingFrames:   ptrInt(a.GetPostExitTrackingFrames()),
		CrossingRearmPx:          ptrFloat64(a.GetCrossingRearmPx()),
		BounceUpwardPx:           ptrFloat64(a.GetBounceUpwardPx()),
		BounceLateralPx:          ptrFloat64(a.GetBounceLateralPx()),
		MinSizeRatio:             ptrFloat64(a.GetMinSizeRatio()),
		MaxSizeRatio:             ptrFloat64(a.GetMaxSizeRatio()),
		MinSamples:               ptrInt(a.GetMinSamples()),
		MinInZoneSamples:         ptrInt(a.GetMinInZoneSamples()),
		MinSwishDwellFrames:      ptrInt(a.GetMinSwishDwellFrames()),
		SwishMinSizeRatio:        ptrFloat64(a.GetSwishMinSizeRatio()),
		SwishMaxSizeRatio:        ptrFloat64(a.GetSwishMaxSizeRatio()),
		NoTopCrossingConfidence:  ptrFloat64(a.GetNoTopCrossingConfidence()),
		CompletePassConfidence:   ptrFloat64(a.GetCompletePassConfidence()),
		RimBounceConfidence:      ptrFloat64(a.GetRimBounceConfidence()),
		SwishConfidence:          ptrFloat64(a.GetSwishConfidence()),
		IncompletePassConfidence: ptrFloat64(a.GetIncompletePassConfidence()),
		UndeterminedConfidence:   ptrFloat64(a.GetUndeterminedConfidence()),
	}
}

func (f *FusionCalibration) resolved() *FusionCalibration {
	return &FusionCalibration{
		NearAgreementFloor:       ptrFloat64(f.GetNearAgreementFloor()),
		FarAgreementFloor:        ptrFloat64(f.GetFarAgreementFloor()),
		AgreementBoost:           ptrFloat64(f.GetAgreementBoost()),
		MaxFusedConfidence:       ptrFloat64(f.GetMaxFusedConfidence()),
		DisagreementPenalty:      ptrFloat64(f.GetDisagreementPenalty()),
		SingletonAcceptanceFloor: ptrFloat64(f.GetSingletonAcceptanceFloor()),
		SingletonPenalty:         ptrFloat64(f.GetSingletonPenalty()),
		PriorityStream:           ptrString(f.GetPriorityStream()),
		ScoreEpsilon:             ptrFloat64(f.GetScoreEpsilon()),
		RimContactUpwardPx:       ptrFloat64(f.GetRimContactUpwardPx()),
		CleanArcMinSwooshSpeed:   ptrFloat64(f.GetCleanArcMinSwooshSpeed()),
		PatternWeights:           f.GetPatternWeights(),
		SignalWeights:            f.GetSignalWeights(),
	}
}
