package sqlite

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/banshee-data/shotcall/internal/shot"
)

// OutcomeFlip is a shot both runs produced a verdict for, with different
// outcomes.
type OutcomeFlip struct {
	TimestampSeconds float64           `json:"timestamp_seconds"`
	FusedIDA         string            `json:"fused_id_a"`
	FusedIDB         string            `json:"fused_id_b"`
	OutcomeA         shot.Outcome      `json:"outcome_a"`
	OutcomeB         shot.Outcome      `json:"outcome_b"`
	MethodA          shot.FusionMethod `json:"method_a"`
	MethodB          shot.FusionMethod `json:"method_b"`
}

// RunComparison summarises how two runs over the same footage differ.
type RunComparison struct {
	RunA         string         `json:"run_a"`
	RunB         string         `json:"run_b"`
	Matched      int            `json:"matched"`
	Unchanged    int            `json:"unchanged"`
	Flips        []OutcomeFlip  `json:"flips"`
	OnlyInA      []string       `json:"only_in_a"`
	OnlyInB      []string       `json:"only_in_b"`
	ParamChanges map[string]any `json:"param_changes,omitempty"`
}

// CompareRuns pairs the verdicts of runs a and b by timestamp, greedily and
// within tolerance seconds, and reports the outcome flips between them
// alongside the calibration parameters that changed.
func (s *Store) CompareRuns(a, b string, tolerance float64) (*RunComparison, error) {
	runA, err := s.GetRun(a)
	if err != nil {
		return nil, err
	}
	runB, err := s.GetRun(b)
	if err != nil {
		return nil, err
	}
	fusedA, err := s.ListFused(a)
	if err != nil {
		return nil, err
	}
	fusedB, err := s.ListFused(b)
	if err != nil {
		return nil, err
	}

	cmp := &RunComparison{RunA: a, RunB: b}
	claimed := make([]bool, len(fusedB))
	for _, fa := range fusedA {
		best := -1
		bestDiff := math.Inf(1)
		for j, fb := range fusedB {
			if claimed[j] {
				continue
			}
			if d := math.Abs(fa.TimestampSeconds - fb.TimestampSeconds); d <= tolerance && d < bestDiff {
				best, bestDiff = j, d
			}
		}
		if best < 0 {
			cmp.OnlyInA = append(cmp.OnlyInA, fa.ID)
			continue
		}
		claimed[best] = true
		fb := fusedB[best]
		cmp.Matched++
		if fa.Outcome == fb.Outcome {
			cmp.Unchanged++
			continue
		}
		cmp.Flips = append(cmp.Flips, OutcomeFlip{
			TimestampSeconds: fa.TimestampSeconds,
			FusedIDA:         fa.ID,
			FusedIDB:         fb.ID,
			OutcomeA:         fa.Outcome,
			OutcomeB:         fb.Outcome,
			MethodA:          fa.FusionMethod,
			MethodB:          fb.FusionMethod,
		})
	}
	for j, fb := range fusedB {
		if !claimed[j] {
			cmp.OnlyInB = append(cmp.OnlyInB, fb.ID)
		}
	}

	cmp.ParamChanges, err = compareParams(runA.ParamsJSON, runB.ParamsJSON)
	if err != nil {
		return nil, err
	}
	return cmp, nil
}

// compareParams diffs two stored calibrations leaf by leaf. Keys are dotted
// JSON paths.
func compareParams(a, b json.RawMessage) (map[string]any, error) {
	flatA, err := flattenParams(a)
	if err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	flatB, err := flattenParams(b)
	if err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}

	keys := map[string]struct{}{}
	for k := range flatA {
		keys[k] = struct{}{}
	}
	for k := range flatB {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	diff := make(map[string]any)
	for _, k := range sorted {
		va, vb := flatA[k], flatB[k]
		if reflect.DeepEqual(va, vb) {
			continue
		}
		diff[k] = map[string]any{"run1": va, "run2": vb}
	}
	return diff, nil
}

func flattenParams(raw json.RawMessage) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	flatten("", v, out)
	return out, nil
}

func flatten(prefix string, v any, out map[string]any) {
	m, ok := v.(map[string]any)
	if !ok {
		out[prefix] = v
		return
	}
	for k, child := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flatten(key, child, out)
	}
}
