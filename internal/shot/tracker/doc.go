// Package tracker turns one camera angle's detector frames into finalized
// shot sequences.
//
// Responsibilities: hoop zone derivation and hold, ball zone membership,
// top/bottom boundary crossings with depth validation, bounce measurement
// after the ball exits, and the sequence lifecycle (open, idle timeout, ball
// lost, exit window, end of stream, abort).
// Key types: Tracker, Config.
//
// Dependency rule: tracker depends on shot and config only. It performs no
// I/O and a Tracker is owned by a single goroutine.
package tracker
