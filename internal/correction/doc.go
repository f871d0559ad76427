// Package correction drives the pause-and-repair loop around subtitle
// synthesis.
//
// A Loop runs synthesis passes. When a pass reports a parse error, the loop
// moves to awaiting_correction and waits for an operator command: retry
// re-runs the pass after the artifacts have been edited and stop aborts
// the run. Commands come from an interactive prompt, a file watcher on the
// offending artifacts, or both.
package correction
