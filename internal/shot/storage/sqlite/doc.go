// Package sqlite persists shot-call runs: the calibration a run used, the
// per-angle records it produced and its fused verdicts.
//
// Runs are kept side by side so two calibrations can be compared on the same
// footage with CompareRuns.
package sqlite
