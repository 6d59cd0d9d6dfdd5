// Package fusion pairs per-angle shot records by time and resolves each
// pair or singleton into one final verdict.
//
// The Matcher applies a fixed clock offset to the far stream and greedily
// claims the nearest unclaimed far record for each near record within a
// tolerance window. The Resolver is a pure function of its inputs and
// configuration: agreement is boosted unless both inputs are weak,
// disagreement is scored with pattern-dependent stream weights, and
// singletons must clear an acceptance floor.
package fusion
