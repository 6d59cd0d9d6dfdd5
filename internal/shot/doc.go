// Package shot owns the domain model shared by every stage of the shot
// verdict pipeline: detector frames, hoop zones, trajectory samples, shot
// sequences, per-angle shot records and fused verdicts.
//
// The stages live in subpackages and depend only on this package:
//
//	detections  detector output -> Frame
//	tracker     Frame -> ShotSequence (per camera angle)
//	classifier  ShotSequence -> ShotRecord (per camera angle)
//	fusion      ShotRecord x2 -> MatchedPair -> FusedShot
//	pipeline    wires the stages for two angles
//
// Storage and reporting (storage/sqlite, report) consume the finished
// records and never feed back into the decision stages.
package shot
