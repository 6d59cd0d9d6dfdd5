// Package report writes the artifacts of a dual-angle run: the results
// document, per-sequence trajectory plots and an HTML verdict timeline.
package report
