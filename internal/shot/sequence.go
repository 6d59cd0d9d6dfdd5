package shot

// Boundary names the zone edge a crossing was detected at.
type Boundary string

const (
	BoundaryTop    Boundary = "top"
	BoundaryBottom Boundary = "bottom"
)

// CloseReason records why a shot sequence was finalized.
type CloseReason string

const (
	CloseIdleTimeout CloseReason = "idle_timeout"
	CloseBallLost    CloseReason = "ball_lost"
	CloseExitWindow  CloseReason = "exit_window_elapsed"
	CloseEndOfStream CloseReason = "end_of_stream"
	CloseAborted     CloseReason = "aborted"
)

// TrajectoryPoint is one ball sample attached to a shot sequence.
type TrajectoryPoint struct {
	FrameIndex int64   `json:"frame_index"`
	Timestamp  float64 `json:"timestamp"`
	Center     Point   `json:"ball_center"`
	BallArea   float64 `json:"ball_bbox_area"`
	SizeRatio  float64 `json:"size_ratio"`
	InZone     bool    `json:"in_zone"`
}

// Crossing is a downward pass of the ball centre through a zone boundary.
// Valid is false when the size ratio at the crossing falls outside the depth
// band, which marks a ball passing in front of or behind the hoop plane.
type Crossing struct {
	Boundary     Boundary `json:"boundary"`
	FrameIndex   int64    `json:"frame_index"`
	Timestamp    float64  `json:"timestamp"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	SizeRatio    float64  `json:"size_ratio"`
	Valid        bool     `json:"valid"`
	Interpolated bool     `json:"interpolated,omitempty"`
}

// Features is the frozen feature set of a finalized sequence. Crossing counts
// only include valid crossings; InvalidCrossings counts the depth-rejected
// ones on both boundaries and InvalidTopCrossings those on the top boundary.
type Features struct {
	TopCrossings        int     `json:"top_crossings"`
	BottomCrossings     int     `json:"bottom_crossings"`
	InvalidCrossings    int     `json:"invalid_crossings"`
	InvalidTopCrossings int     `json:"invalid_top_crossings"`
	AvgSizeRatio        float64 `json:"avg_size_ratio"`
	BouncedBackOut      bool    `json:"bounced_back_out"`
	BounceUpwardPx      float64 `json:"bounce_upward_px"`
	BounceLateralPx     float64 `json:"bounce_lateral_px"`
	Samples             int     `json:"samples"`
	InZoneFrames        int     `json:"in_zone_frames"`
	DwellSeconds        float64 `json:"dwell_seconds"`
	SwooshSpeed         float64 `json:"swoosh_speed"`
}

// ShotSequence is the ordered trajectory of one shot attempt. It is mutated
// only by the tracker that owns it and is immutable once finalized.
type ShotSequence struct {
	Angle          Angle             `json:"angle"`
	StartFrame     int64             `json:"start_frame"`
	EndFrame       int64             `json:"end_frame"`
	StartTimestamp float64           `json:"start_timestamp"`
	EndTimestamp   float64           `json:"end_timestamp"`
	Points         []TrajectoryPoint `json:"points"`
	Crossings      []Crossing        `json:"crossings"`
	Zone           HoopZone          `json:"zone"`
	CloseReason    CloseReason       `json:"close_reason"`
	Incomplete     bool              `json:"incomplete,omitempty"`
	Features       Features          `json:"features"`
	Evidence       []Evidence        `json:"evidence,omitempty"`
}

// InZoneSpan returns the first and last in-zone samples. ok is false when no
// sample was in the zone.
func (s *ShotSequence) InZoneSpan() (first, last TrajectoryPoint, ok bool) {
	for _, p := range s.Points {
		if !p.InZone {
			continue
		}
		if !ok {
			first = p
			ok = true
		}
		last = p
	}
	return first, last, ok
}

// MidTimestamp is the midpoint of the in-zone span, falling back to the
// sequence span when nothing was in the zone.
func (s *ShotSequence) MidTimestamp() float64 {
	if first, last, ok := s.InZoneSpan(); ok {
		return (first.Timestamp + last.Timestamp) / 2
	}
	return (s.StartTimestamp + s.EndTimestamp) / 2
}

// CrossingsAt returns the crossings at boundary, optionally only valid ones.
func (s *ShotSequence) CrossingsAt(b Boundary, validOnly bool) []Crossing {
	var out []Crossing
	for _, c := range s.Crossings {
		if c.Boundary != b || (validOnly && !c.Valid) {
			continue
		}
		out = append(out, c)
	}
	return out
}
