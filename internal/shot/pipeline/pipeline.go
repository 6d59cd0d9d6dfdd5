// Package pipeline wires detections, tracking, classification and fusion
// into per-angle and dual-angle runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/shot"
	"github.com/banshee-data/shotcall/internal/shot/classifier"
	"github.com/banshee-data/shotcall/internal/shot/detections"
	"github.com/banshee-data/shotcall/internal/shot/fusion"
	"github.com/banshee-data/shotcall/internal/shot/tracker"
)

// SequenceObserver receives every finalized sequence together with the record
// classified from it.
type SequenceObserver func(seq *shot.ShotSequence, rec *shot.ShotRecord)

// AnglePipeline runs one camera stream from frames to shot records.
type AnglePipeline struct {
	angle      shot.Angle
	tracker    *tracker.Tracker
	classifier *classifier.ShotClassifier
	abort      tracker.AbortPolicy
	observer   SequenceObserver
	logf       func(format string, v ...interface{})
}

// NewAnglePipeline builds the pipeline for angle from calibration.
func NewAnglePipeline(cfg *config.CalibrationConfig, angle shot.Angle, abort tracker.AbortPolicy) (*AnglePipeline, error) {
	tr, err := tracker.NewTracker(tracker.ConfigFromCalibration(cfg, angle))
	if err != nil {
		return nil, err
	}
	return &AnglePipeline{
		angle:      angle,
		tracker:    tr,
		classifier: classifier.NewShotClassifier(classifier.ConfigFromCalibration(cfg, angle)),
		abort:      abort,
		logf:       monitoring.WithPrefix(fmt.Sprintf("[pipeline %s] ", angle)),
	}, nil
}

// SetObserver installs fn as the sequence observer.
func (p *AnglePipeline) SetObserver(fn SequenceObserver) { p.observer = fn }

// Angle returns the pipeline's camera angle.
func (p *AnglePipeline) Angle() shot.Angle { return p.angle }

// FramesProcessed returns the number of frames fed to the tracker.
func (p *AnglePipeline) FramesProcessed() int64 { return p.tracker.FramesProcessed }

// Run consumes src until io.EOF and returns the records in close order. When
// ctx is cancelled the open sequence is handled by the abort policy and the
// records produced so far are returned with ctx.Err().
func (p *AnglePipeline) Run(ctx context.Context, src detections.FrameSource) ([]*shot.ShotRecord, error) {
	var records []*shot.ShotRecord
	for {
		if err := ctx.Err(); err != nil {
			if seq := p.tracker.Abort(p.abort); seq != nil {
				records = append(records, p.finish(seq))
			}
			p.logf("stopped after %d frames: %v", p.tracker.FramesProcessed, err)
			return records, err
		}

		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return records, fmt.Errorf("%s stream: %w", p.angle, err)
		}

		closed, err := p.tracker.ProcessFrame(f)
		if err != nil {
			return records, fmt.Errorf("%s stream: %w", p.angle, err)
		}
		monitoring.FramesProcessedTotal.WithLabelValues(string(p.angle)).Inc()
		for _, seq := range closed {
			records = append(records, p.finish(seq))
		}
	}

	if seq := p.tracker.Flush(); seq != nil {
		records = append(records, p.finish(seq))
	}
	p.logf("%d frames, %d records", p.tracker.FramesProcessed, len(records))
	return records, nil
}

func (p *AnglePipeline) finish(seq *shot.ShotSequence) *shot.ShotRecord {
	rec := p.classifier.Classify(seq)
	monitoring.SequencesClosedTotal.WithLabelValues(string(p.angle), string(seq.CloseReason)).Inc()
	monitoring.RecordsClassifiedTotal.WithLabelValues(string(p.angle), string(rec.Outcome)).Inc()
	if p.observer != nil {
		p.observer(seq, rec)
	}
	return rec
}

// Stats summarises one dual-angle run. AgreementRate is Agreements over
// MatchedPairs and ShootingPercentage is Made over decisive verdicts; both
// are 0 when their denominator is.
type Stats struct {
	NearFrames    int64 `json:"near_frames"`
	FarFrames     int64 `json:"far_frames"`
	NearRecords   int   `json:"near_records"`
	FarRecords    int   `json:"far_records"`
	MatchedPairs  int   `json:"matched_pairs"`
	UnmatchedNear int   `json:"unmatched_near"`
	UnmatchedFar  int   `json:"unmatched_far"`

	TotalShots         int     `json:"total_shots"`
	Made               int     `json:"made"`
	Missed             int     `json:"missed"`
	Undetermined       int     `json:"undetermined"`
	Agreements         int     `json:"agreements"`
	AgreementRate      float64 `json:"agreement_rate"`
	ShootingPercentage float64 `json:"shooting_percentage"`

	MethodCounts map[shot.FusionMethod]int `json:"method_counts"`
	Duration     time.Duration             `json:"duration_ns"`
}

// Result is the output of a dual-angle run.
type Result struct {
	Near  []*shot.ShotRecord `json:"near"`
	Far   []*shot.ShotRecord `json:"far"`
	Match fusion.MatchResult `json:"-"`
	Fused []shot.FusedShot   `json:"fused"`
	Stats Stats              `json:"statistics"`
}

// DualAngle runs both streams concurrently and fuses their records.
type DualAngle struct {
	near     *AnglePipeline
	far      *AnglePipeline
	matcher  *fusion.Matcher
	resolver *fusion.Resolver

	obsMu    sync.Mutex
	observer SequenceObserver
}

// NewDualAngle builds a dual-angle run from calibration. A nil calibration
// uses the built-in defaults.
func NewDualAngle(cfg *config.CalibrationConfig, abort tracker.AbortPolicy) (*DualAngle, error) {
	near, err := NewAnglePipeline(cfg, shot.AngleNear, abort)
	if err != nil {
		return nil, err
	}
	far, err := NewAnglePipeline(cfg, shot.AngleFar, abort)
	if err != nil {
		return nil, err
	}
	d := &DualAngle{
		near:     near,
		far:      far,
		matcher:  fusion.NewMatcher(fusion.MatcherConfigFromCalibration(cfg)),
		resolver: fusion.NewResolver(fusion.ResolverConfigFromCalibration(cfg)),
	}
	near.SetObserver(d.observe)
	far.SetObserver(d.observe)
	return d, nil
}

// SetObserver installs fn for both streams. Calls are serialised.
func (d *DualAngle) SetObserver(fn SequenceObserver) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	d.observer = fn
}

func (d *DualAngle) observe(seq *shot.ShotSequence, rec *shot.ShotRecord) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	if d.observer != nil {
		d.observer(seq, rec)
	}
}

// Run processes both streams and fuses the results. A failure in either
// stream stops the other and is returned without a result. On cancellation
// the records gathered so far are still fused and returned with ctx.Err().
func (d *DualAngle) Run(ctx context.Context, near, far detections.FrameSource) (*Result, error) {
	start := time.Now()
	res := &Result{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.Near, err = d.near.Run(gctx, near)
		return err
	})
	g.Go(func() error {
		var err error
		res.Far, err = d.far.Run(gctx, far)
		return err
	})
	runErr := g.Wait()
	if runErr != nil && !isContextErr(runErr) {
		return nil, runErr
	}

	res.Match = d.matcher.Match(res.Near, res.Far)
	res.Fused = d.resolver.ResolveAll(res.Match)
	for _, fs := range res.Fused {
		monitoring.FusedShotsTotal.WithLabelValues(string(fs.FusionMethod), string(fs.Outcome)).Inc()
		monitoring.FusionConfidence.Observe(fs.FusionConfidence)
	}
	res.Stats = d.stats(res)
	res.Stats.Duration = time.Since(start)

	monitoring.Logf("[pipeline] %d near, %d far, %d pairs, %d verdicts (%d made, %d missed, %d undetermined)",
		res.Stats.NearRecords, res.Stats.FarRecords, res.Stats.MatchedPairs,
		res.Stats.TotalShots, res.Stats.Made, res.Stats.Missed, res.Stats.Undetermined)

	if runErr != nil {
		return res, runErr
	}
	return res, ctx.Err()
}

func (d *DualAngle) stats(res *Result) Stats {
	s := Stats{
		NearFrames:    d.near.FramesProcessed(),
		FarFrames:     d.far.FramesProcessed(),
		NearRecords:   len(res.Near),
		FarRecords:    len(res.Far),
		MatchedPairs:  len(res.Match.Pairs),
		UnmatchedNear: len(res.Match.UnmatchedNear),
		UnmatchedFar:  len(res.Match.UnmatchedFar),
		TotalShots:    len(res.Fused),
		MethodCounts:  map[shot.FusionMethod]int{},
	}
	for _, fs := range res.Fused {
		s.MethodCounts[fs.FusionMethod]++
		switch fs.Outcome {
		case shot.OutcomeMade:
			s.Made++
		case shot.OutcomeMissed:
			s.Missed++
		default:
			s.Undetermined++
		}
		if fs.OutcomeAgreement {
			s.Agreements++
		}
	}
	if s.MatchedPairs > 0 {
		s.AgreementRate = float64(s.Agreements) / float64(s.MatchedPairs)
	}
	if decisive := s.Made + s.Missed; decisive > 0 {
		s.ShootingPercentage = float64(s.Made) / float64(decisive)
	}
	return s
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
