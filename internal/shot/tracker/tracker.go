package tracker

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/shot"
)

// ErrOutOfOrderFrame is returned when a frame index does not increase.
var ErrOutOfOrderFrame = errors.New("frame out of order")

// AbortPolicy decides what happens to the open sequence when processing is
// cancelled mid-stream.
type AbortPolicy int

const (
	// AbortDiscard drops the open sequence.
	AbortDiscard AbortPolicy = iota
	// AbortFinalize closes the open sequence and marks it incomplete.
	AbortFinalize
)

func (p AbortPolicy) String() string {
	switch p {
	case AbortDiscard:
		return "discard"
	case AbortFinalize:
		return "finalize"
	}
	return fmt.Sprintf("AbortPolicy(%d)", int(p))
}

// ParseAbortPolicy maps "discard" and "finalize" to policies.
func ParseAbortPolicy(s string) (AbortPolicy, error) {
	switch s {
	case "discard":
		return AbortDiscard, nil
	case "finalize":
		return AbortFinalize, nil
	}
	return AbortDiscard, fmt.Errorf("unknown abort policy %q", s)
}

// Tracker follows the ball around one hoop for one camera angle. It is not
// safe for concurrent use; each angle owns its own Tracker.
type Tracker struct {
	cfg  Config
	logf func(format string, v ...interface{})

	zone        shot.HoopZone
	zoneSeen    bool
	hoopMissing int

	started   bool
	lastFrame int64

	// lastBall is the most recent ball sample, kept as pre-roll so the
	// segment entering the zone is evaluated for a top crossing.
	lastBall *shot.TrajectoryPoint

	active *sequenceState

	// Lifetime counters
	FramesProcessed int64
	SequencesClosed int64
}

type sequenceState struct {
	seq          *shot.ShotSequence
	missing      int
	lastInZoneTs float64
	topArmed     bool
	bottomArmed  bool
	exit         *exitState
}

// exitState follows the ball after the first valid bottom crossing.
type exitState struct {
	frame      int64
	origin     shot.Point
	maxUpward  float64
	maxLateral float64
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Zone.Validate(); err != nil {
		return nil, fmt.Errorf("tracker %s: %w", cfg.Angle, err)
	}
	if cfg.MinSizeRatio >= cfg.MaxSizeRatio {
		return nil, fmt.Errorf("tracker %s: empty size ratio band [%f, %f]", cfg.Angle, cfg.MinSizeRatio, cfg.MaxSizeRatio)
	}
	return &Tracker{
		cfg:  cfg,
		logf: monitoring.WithPrefix(fmt.Sprintf("[tracker %s] ", cfg.Angle)),
	}, nil
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Zone returns the current hoop zone and whether membership testing is
// active for it.
func (t *Tracker) Zone() (shot.HoopZone, bool) {
	return t.zone, t.zoneActive()
}

// Active reports whether a sequence is open.
func (t *Tracker) Active() bool { return t.active != nil }

func (t *Tracker) zoneActive() bool {
	return t.zoneSeen && t.hoopMissing <= t.cfg.HoopHoldFrames
}

// ProcessFrame consumes one frame and returns any sequences it finalized.
// Frames must arrive with strictly increasing indexes; skipped indexes count
// as frames with neither ball nor hoop.
func (t *Tracker) ProcessFrame(f shot.Frame) ([]*shot.ShotSequence, error) {
	if t.started && f.Index <= t.lastFrame {
		return nil, fmt.Errorf("%w: frame %d after %d", ErrOutOfOrderFrame, f.Index, t.lastFrame)
	}
	skipped := 0
	if t.started {
		skipped = int(f.Index - t.lastFrame - 1)
	}
	t.started = true
	t.lastFrame = f.Index
	t.FramesProcessed++

	// Step 1: refresh or age the hoop zone
	t.updateHoop(f, skipped)

	ball, hasBall := f.Best(shot.ClassBall, t.cfg.BallMinConfidence)

	// Step 2: close the open sequence if this frame ends it
	var closed []*shot.ShotSequence
	if s := t.active; s != nil {
		s.missing += skipped
		if !hasBall {
			s.missing++
		}
		if reason, ok := t.closeReason(s, f); ok {
			closed = append(closed, t.close(reason, false))
		}
	}

	if !hasBall {
		return closed, nil
	}

	// Step 3: attach the sample, opening a sequence on zone entry
	p := t.sample(f, ball)
	switch {
	case t.active != nil:
		t.active.missing = 0
		t.appendPoint(p)
	case p.InZone:
		t.open(p)
	}
	t.lastBall = &p
	return closed, nil
}

// Flush finalizes the open sequence at end of stream. It returns nil when no
// sequence is open.
func (t *Tracker) Flush() *shot.ShotSequence {
	if t.active == nil {
		return nil
	}
	return t.close(shot.CloseEndOfStream, false)
}

// Abort ends the open sequence according to policy. With AbortFinalize the
// sequence is returned marked incomplete; with AbortDiscard it is dropped and
// nil is returned.
func (t *Tracker) Abort(policy AbortPolicy) *shot.ShotSequence {
	if t.active == nil {
		return nil
	}
	if policy == AbortFinalize {
		return t.close(shot.CloseAborted, true)
	}
	t.logf("discarding open sequence from frame %d on abort", t.active.seq.StartFrame)
	t.active = nil
	return nil
}

func (t *Tracker) updateHoop(f shot.Frame, skipped int) {
	hoop, ok := f.Best(shot.ClassHoop, t.cfg.HoopMinConfidence)
	if !ok {
		wasActive := t.zoneActive()
		t.hoopMissing += 1 + skipped
		if wasActive && !t.zoneActive() {
			t.logf("hoop lost for %d frames at frame %d, zone suspended", t.hoopMissing, f.Index)
		}
		return
	}
	if t.zoneSeen && !t.zoneActive() {
		t.logf("hoop reacquired at frame %d", f.Index)
	}
	t.zone = shot.NewHoopZone(hoop.BBox, t.cfg.Zone)
	t.zoneSeen = true
	t.hoopMissing = 0
}

func (t *Tracker) closeReason(s *sequenceState, f shot.Frame) (shot.CloseReason, bool) {
	switch {
	case s.missing > t.cfg.MaxMissingBallFrames:
		return shot.CloseBallLost, true
	case f.Timestamp-s.lastInZoneTs > t.cfg.IdleTimeoutSeconds:
		return shot.CloseIdleTimeout, true
	case s.exit != nil && f.Index-s.exit.frame > int64(t.cfg.PostExitTrackingFrames):
		return shot.CloseExitWindow, true
	}
	return "", false
}

// sample builds a trajectory point. Membership and size ratio are only
// computed while the zone is active.
func (t *Tracker) sample(f shot.Frame, ball shot.Detection) shot.TrajectoryPoint {
	p := shot.TrajectoryPoint{
		FrameIndex: f.Index,
		Timestamp:  f.Timestamp,
		Center:     ball.BBox.Center(),
		BallArea:   ball.BBox.Area(),
	}
	if t.zoneActive() {
		p.InZone = t.zone.Contains(p.Center)
		p.SizeRatio = t.zone.SizeRatio(p.BallArea)
	}
	return p
}

func (t *Tracker) open(p shot.TrajectoryPoint) {
	s := &sequenceState{
		seq: &shot.ShotSequence{
			Angle:          t.cfg.Angle,
			StartFrame:     p.FrameIndex,
			StartTimestamp: p.Timestamp,
		},
		lastInZoneTs: p.Timestamp,
		topArmed:     true,
		bottomArmed:  true,
	}
	t.active = s

	if pre := t.lastBall; pre != nil && p.FrameIndex-pre.FrameIndex <= int64(t.cfg.MaxMissingBallFrames)+1 {
		s.seq.Points = append(s.seq.Points, *pre)
		s.seq.StartFrame = pre.FrameIndex
		s.seq.StartTimestamp = pre.Timestamp
	}
	t.logf("sequence opened at frame %d (%.0f, %.0f)", p.FrameIndex, p.Center.X, p.Center.Y)
	t.appendPoint(p)
}

func (t *Tracker) appendPoint(p shot.TrajectoryPoint) {
	s := t.active
	var prev shot.TrajectoryPoint
	hasPrev := len(s.seq.Points) > 0
	if hasPrev {
		prev = s.seq.Points[len(s.seq.Points)-1]
	}

	s.seq.Points = append(s.seq.Points, p)
	s.seq.EndFrame = p.FrameIndex
	s.seq.EndTimestamp = p.Timestamp
	if p.InZone {
		s.lastInZoneTs = p.Timestamp
	}

	if t.zoneActive() {
		if hasPrev {
			t.detectCrossing(s, shot.BoundaryTop, prev, p)
			t.detectCrossing(s, shot.BoundaryBottom, prev, p)
		}
		t.rearm(s, p)
	}
	t.trackExit(s, p)
}

// detectCrossing fires when the segment prev->curr passes downward through
// the boundary: prev.y < boundary <= curr.y. When the vertical step exceeds
// the hoop's height the crossing x is taken from the straight line between
// the samples rather than the endpoint.
func (t *Tracker) detectCrossing(s *sequenceState, b shot.Boundary, prev, curr shot.TrajectoryPoint) {
	armed := &s.topArmed
	y := t.zone.TopBoundary()
	if b == shot.BoundaryBottom {
		armed = &s.bottomArmed
		y = t.zone.BottomBoundary()
	}
	if !*armed || !(prev.Center.Y < y && y <= curr.Center.Y) {
		return
	}

	x, ts := curr.Center.X, curr.Timestamp
	dy := curr.Center.Y - prev.Center.Y
	interpolated := dy > t.zone.HoopHeight()
	if interpolated {
		frac := (y - prev.Center.Y) / dy
		x = prev.Center.X + frac*(curr.Center.X-prev.Center.X)
		ts = prev.Timestamp + frac*(curr.Timestamp-prev.Timestamp)
	}
	if !t.zone.WithinHorizontal(x) {
		return
	}

	ratio := t.zone.SizeRatio(curr.BallArea)
	c := shot.Crossing{
		Boundary:     b,
		FrameIndex:   curr.FrameIndex,
		Timestamp:    ts,
		X:            x,
		Y:            y,
		SizeRatio:    ratio,
		Valid:        t.cfg.ValidRatio(ratio),
		Interpolated: interpolated,
	}
	*armed = false
	s.seq.Crossings = append(s.seq.Crossings, c)

	check := fmt.Sprintf("%s_crossing_depth@%d", b, c.FrameIndex)
	s.seq.Evidence = append(s.seq.Evidence,
		shot.Evidence{Check: check + ":min_ratio", Value: ratio, Threshold: t.cfg.MinSizeRatio, Passed: ratio >= t.cfg.MinSizeRatio},
		shot.Evidence{Check: check + ":max_ratio", Value: ratio, Threshold: t.cfg.MaxSizeRatio, Passed: ratio <= t.cfg.MaxSizeRatio},
	)

	if b == shot.BoundaryBottom && c.Valid && s.exit == nil {
		s.exit = &exitState{frame: curr.FrameIndex, origin: curr.Center}
	}
}

// rearm allows another crossing of a boundary once the ball has climbed
// back above it by CrossingRearmPx.
func (t *Tracker) rearm(s *sequenceState, p shot.TrajectoryPoint) {
	if p.Center.Y < t.zone.TopBoundary()-t.cfg.CrossingRearmPx {
		s.topArmed = true
	}
	if p.Center.Y < t.zone.BottomBoundary()-t.cfg.CrossingRearmPx {
		s.bottomArmed = true
	}
}

func (t *Tracker) trackExit(s *sequenceState, p shot.TrajectoryPoint) {
	e := s.exit
	if e == nil || p.FrameIndex <= e.frame || p.FrameIndex-e.frame > int64(t.cfg.PostExitTrackingFrames) {
		return
	}
	if up := e.origin.Y - p.Center.Y; up > e.maxUpward {
		e.maxUpward = up
	}
	if lat := math.Abs(p.Center.X - e.origin.X); lat > e.maxLateral {
		e.maxLateral = lat
	}
}

func (t *Tracker) close(reason shot.CloseReason, incomplete bool) *shot.ShotSequence {
	s := t.active
	t.active = nil

	seq := s.seq
	seq.CloseReason = reason
	seq.Incomplete = incomplete
	seq.Zone = t.zone
	seq.Features = t.features(s)
	if s.exit != nil {
		seq.Evidence = append(seq.Evidence,
			shot.Evidence{Check: "bounce_upward_px", Value: s.exit.maxUpward, Threshold: t.cfg.BounceUpwardPx, Passed: s.exit.maxUpward > t.cfg.BounceUpwardPx},
			shot.Evidence{Check: "bounce_lateral_px", Value: s.exit.maxLateral, Threshold: t.cfg.BounceLateralPx, Passed: s.exit.maxLateral > t.cfg.BounceLateralPx},
		)
	}

	t.SequencesClosed++
	t.logf("sequence %d-%d closed (%s): top=%d bottom=%d invalid=%d bounced=%v",
		seq.StartFrame, seq.EndFrame, reason,
		seq.Features.TopCrossings, seq.Features.BottomCrossings, seq.Features.InvalidCrossings,
		seq.Features.BouncedBackOut)
	return seq
}

func (t *Tracker) features(s *sequenceState) shot.Features {
	seq := s.seq
	f := shot.Features{Samples: len(seq.Points)}

	var ratios []float64
	for _, p := range seq.Points {
		if !p.InZone {
			continue
		}
		f.InZoneFrames++
		if p.SizeRatio > 0 {
			ratios = append(ratios, p.SizeRatio)
		}
	}
	if len(ratios) > 0 {
		f.AvgSizeRatio = stat.Mean(ratios, nil)
	}

	for _, c := range seq.Crossings {
		switch {
		case !c.Valid:
			f.InvalidCrossings++
			if c.Boundary == shot.BoundaryTop {
				f.InvalidTopCrossings++
			}
		case c.Boundary == shot.BoundaryTop:
			f.TopCrossings++
		default:
			f.BottomCrossings++
		}
	}

	if first, last, ok := seq.InZoneSpan(); ok {
		f.DwellSeconds = last.Timestamp - first.Timestamp
	}
	if f.DwellSeconds > 0 {
		f.SwooshSpeed = (t.cfg.Zone.TopExtent + t.cfg.Zone.BottomExtent) / f.DwellSeconds
	}

	if e := s.exit; e != nil {
		f.BounceUpwardPx = e.maxUpward
		f.BounceLateralPx = e.maxLateral
		f.BouncedBackOut = e.maxUpward > t.cfg.BounceUpwardPx || e.maxLateral > t.cfg.BounceLateralPx
	}
	return f
}
