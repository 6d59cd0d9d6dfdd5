package fusion

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/shotcall/internal/shot"
)

// Resolver turns matched pairs and singletons into final verdicts. It holds
// only a private copy of its configuration and is safe for concurrent use.
type Resolver struct {
	cfg ResolverConfig
}

// NewResolver creates a resolver. The configuration's maps are copied.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg.clone()}
}

// ResolveAll resolves every pair and singleton of a match and returns the
// verdicts ordered by timestamp, then ID.
func (r *Resolver) ResolveAll(m MatchResult) []shot.FusedShot {
	out := make([]shot.FusedShot, 0, len(m.Pairs)+len(m.UnmatchedNear)+len(m.UnmatchedFar))
	for _, p := range m.Pairs {
		out = append(out, r.ResolvePair(p))
	}
	for _, rec := range m.UnmatchedNear {
		out = append(out, r.ResolveSingleton(rec, shot.AngleNear))
	}
	for _, rec := range m.UnmatchedFar {
		out = append(out, r.ResolveSingleton(rec, shot.AngleFar))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimestampSeconds != out[j].TimestampSeconds {
			return out[i].TimestampSeconds < out[j].TimestampSeconds
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ResolvePair produces the verdict for one matched pair.
func (r *Resolver) ResolvePair(p shot.MatchedPair) shot.FusedShot {
	fs := shot.FusedShot{
		ID:               shot.FusedID(p.Near.ID, p.Far.ID),
		TimestampSeconds: p.Near.TimestampSeconds,
		NearRecord:       p.Near,
		FarRecord:        p.Far,
		TimeDiff:         p.TimeDiff,
	}
	switch {
	case p.Near.Outcome == p.Far.Outcome:
		r.agree(&fs, p.Near, p.Far)
	case !p.Near.Outcome.Decisive():
		r.singleVote(&fs, p.Far, shot.AngleFar)
	case !p.Far.Outcome.Decisive():
		r.singleVote(&fs, p.Near, shot.AngleNear)
	default:
		r.disagree(&fs, p.Near, p.Far)
	}
	return fs
}

// ResolveSingleton produces the verdict for a record seen by one angle only.
// The record's outcome is kept only if its confidence exceeds the
// acceptance floor.
func (r *Resolver) ResolveSingleton(rec *shot.ShotRecord, angle shot.Angle) shot.FusedShot {
	fs := shot.FusedShot{
		TimestampSeconds: AlignedTimestamp(rec, angle, r.cfg.ClockOffsetSeconds),
	}
	accepted, rejected := shot.MethodSingleNear, shot.MethodSingleNearRejected
	if angle == shot.AngleFar {
		fs.FarRecord = rec
		fs.ID = shot.FusedID("", rec.ID)
		accepted, rejected = shot.MethodSingleFar, shot.MethodSingleFarRejected
	} else {
		fs.NearRecord = rec
		fs.ID = shot.FusedID(rec.ID, "")
	}

	if r.gate(&fs, rec) {
		fs.FusionMethod = accepted
	} else {
		fs.FusionMethod = rejected
	}
	return fs
}

// gate applies the singleton acceptance floor to rec.
func (r *Resolver) gate(fs *shot.FusedShot, rec *shot.ShotRecord) bool {
	ok := rec.Outcome.Decisive() && rec.Confidence > r.cfg.SingletonAcceptanceFloor
	fs.Evidence = append(fs.Evidence, shot.Evidence{
		Check:     "singleton_acceptance_floor",
		Value:     rec.Confidence,
		Threshold: r.cfg.SingletonAcceptanceFloor,
		Passed:    ok,
	})
	if !ok {
		fs.Outcome = shot.OutcomeUndetermined
		fs.FusionConfidence = 0
		return false
	}
	fs.Outcome = rec.Outcome
	fs.FusionConfidence = rec.Confidence * r.cfg.SingletonPenalty
	return true
}

func (r *Resolver) agree(fs *shot.FusedShot, near, far *shot.ShotRecord) {
	fs.Outcome = near.Outcome
	fs.OutcomeAgreement = true

	nearOK := near.Confidence >= r.cfg.NearAgreementFloor
	farOK := far.Confidence >= r.cfg.FarAgreementFloor
	fs.Evidence = append(fs.Evidence,
		shot.Evidence{Check: "near_agreement_floor", Value: near.Confidence, Threshold: r.cfg.NearAgreementFloor, Passed: nearOK},
		shot.Evidence{Check: "far_agreement_floor", Value: far.Confidence, Threshold: r.cfg.FarAgreementFloor, Passed: farOK},
	)

	avg := (near.Confidence + far.Confidence) / 2
	if !nearOK && !farOK {
		// two weak votes are not boosted
		fs.FusionMethod = shot.MethodAgreementLowConfidence
		fs.FusionConfidence = avg
		return
	}
	fs.FusionMethod = shot.MethodAgreement
	fs.FusionConfidence = math.Min(r.cfg.MaxFusedConfidence, avg*r.cfg.AgreementBoost)
}

// singleVote handles a pair where the other stream is undetermined: the
// decisive record is gated like a singleton.
func (r *Resolver) singleVote(fs *shot.FusedShot, rec *shot.ShotRecord, angle shot.Angle) {
	if !r.gate(fs, rec) {
		fs.FusionMethod = shot.MethodSingleVoteRejected
		return
	}
	fs.FusionMethod = shot.MethodSingleVoteNear
	if angle == shot.AngleFar {
		fs.FusionMethod = shot.MethodSingleVoteFar
	}
}

// disagree scores each stream's vote with the pattern's stream weight and
// the weighted signal set. The higher-scoring outcome wins; near-equal
// scores fall back to raw confidence, then to the priority stream.
func (r *Resolver) disagree(fs *shot.FusedShot, near, far *shot.ShotRecord) {
	pattern, evidence := ClassifyPattern(near, far, r.cfg)
	fs.Pattern = pattern
	fs.Evidence = append(fs.Evidence, evidence...)
	fs.FusionMethod = shot.MethodDisagreement

	weights := make([]float64, len(Signals))
	for i, s := range Signals {
		weights[i] = r.cfg.SignalWeights[s]
	}

	pw := r.cfg.PatternWeights[pattern]
	fs.Scores = map[shot.Outcome]float64{}
	for _, side := range []struct {
		angle shot.Angle
		rec   *shot.ShotRecord
	}{{shot.AngleNear, near}, {shot.AngleFar, far}} {
		values := make([]float64, len(Signals))
		for i, s := range Signals {
			values[i] = signalValue(s, side.rec, r.cfg.Streams[side.angle], r.cfg)
			fs.Evidence = append(fs.Evidence, shot.Evidence{
				Check:     fmt.Sprintf("%s_signal:%s", side.angle, s),
				Value:     values[i],
				Threshold: weights[i],
				Passed:    values[i] >= 0.5,
			})
		}
		fs.Scores[side.rec.Outcome] += pw.For(side.angle) * floats.Dot(weights, values)
	}

	winner := near
	diff := fs.Scores[near.Outcome] - fs.Scores[far.Outcome]
	switch {
	case diff > r.cfg.ScoreEpsilon:
	case diff < -r.cfg.ScoreEpsilon:
		winner = far
	default:
		winner = r.tieBreak(fs, near, far)
	}

	fs.Outcome = winner.Outcome
	fs.FusionConfidence = winner.Confidence * r.cfg.DisagreementPenalty
}

func (r *Resolver) tieBreak(fs *shot.FusedShot, near, far *shot.ShotRecord) *shot.ShotRecord {
	fs.Evidence = append(fs.Evidence, shot.Evidence{
		Check:     "tie_break_confidence",
		Value:     near.Confidence - far.Confidence,
		Threshold: 0,
		Passed:    near.Confidence != far.Confidence,
	})
	switch {
	case near.Confidence > far.Confidence:
		return near
	case far.Confidence > near.Confidence:
		return far
	case r.cfg.PriorityStream == shot.AngleFar:
		return far
	}
	return near
}
