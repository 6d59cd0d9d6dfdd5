package shot

import (
	"fmt"

	"github.com/google/uuid"
)

// recordNamespace scopes deterministic record and verdict IDs.
var recordNamespace = uuid.MustParse("6f1e2c8a-3b5d-4e7f-9a10-2c4b6d8e0f12")

// RecordID derives a stable ID for the record classified from the sequence
// spanning [startFrame, endFrame] on angle.
func RecordID(angle Angle, startFrame, endFrame int64) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s:%d:%d", angle, startFrame, endFrame))).String()
}

// FusedID derives a stable ID for a verdict built from the given record IDs.
// Missing sides are passed as empty strings.
func FusedID(nearID, farID string) string {
	return uuid.NewSHA1(recordNamespace, []byte("fused:"+nearID+"|"+farID)).String()
}

// ShotRecord is the per-angle verdict for one finalized shot sequence. The
// embedded Features flatten into the record's JSON form.
type ShotRecord struct {
	ID               string      `json:"id"`
	Angle            Angle       `json:"angle"`
	TimestampSeconds float64     `json:"timestamp_seconds"`
	StartFrame       int64       `json:"start_frame"`
	EndFrame         int64       `json:"end_frame"`
	Outcome          Outcome     `json:"outcome"`
	OutcomeReason    string      `json:"outcome_reason"`
	Confidence       float64     `json:"confidence"`
	Model            string      `json:"model"`
	CloseReason      CloseReason `json:"close_reason"`
	Incomplete       bool        `json:"incomplete,omitempty"`
	Features
	Crossings []Crossing `json:"crossings,omitempty"`
	Evidence  []Evidence `json:"evidence,omitempty"`
}

// MatchedPair is one near record and one far record judged to be the same
// physical shot. TimeDiff is the absolute offset-corrected time difference.
type MatchedPair struct {
	Near     *ShotRecord `json:"near"`
	Far      *ShotRecord `json:"far"`
	TimeDiff float64     `json:"time_diff"`
}

// FusionMethod names the resolver branch that produced a verdict.
type FusionMethod string

const (
	MethodAgreement              FusionMethod = "agreement"
	MethodAgreementLowConfidence FusionMethod = "agreement_low_confidence"
	MethodDisagreement           FusionMethod = "disagreement_weighted"
	MethodSingleNear             FusionMethod = "single_near"
	MethodSingleFar              FusionMethod = "single_far"
	MethodSingleNearRejected     FusionMethod = "single_near_rejected"
	MethodSingleFarRejected      FusionMethod = "single_far_rejected"
	MethodSingleVoteNear         FusionMethod = "single_vote_near"
	MethodSingleVoteFar          FusionMethod = "single_vote_far"
	MethodSingleVoteRejected     FusionMethod = "single_vote_rejected"
)

// ShotPattern is the coarse shape of a shot, used to weigh the two streams
// when they disagree.
type ShotPattern string

const (
	PatternRimContact ShotPattern = "rim_contact"
	PatternCleanArc   ShotPattern = "clean_arc"
	PatternAmbiguous  ShotPattern = "ambiguous"
)

// FusedShot is the final verdict for one physical shot. NearRecord or
// FarRecord is nil for singletons.
type FusedShot struct {
	ID               string              `json:"id"`
	TimestampSeconds float64             `json:"timestamp_seconds"`
	Outcome          Outcome             `json:"outcome"`
	FusionMethod     FusionMethod        `json:"fusion_method"`
	FusionConfidence float64             `json:"fusion_confidence"`
	NearRecord       *ShotRecord         `json:"near_record"`
	FarRecord        *ShotRecord         `json:"far_record"`
	OutcomeAgreement bool                `json:"outcome_agreement"`
	TimeDiff         float64             `json:"time_diff"`
	Pattern          ShotPattern         `json:"shot_pattern,omitempty"`
	Scores           map[Outcome]float64 `json:"scores,omitempty"`
	Evidence         []Evidence          `json:"evidence,omitempty"`
}
