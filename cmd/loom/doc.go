// Package main hosts the loom CLI entrypoint and command graph.
//
// The Cobra-based command tree exposes the full pipeline (run) and each of
// its stages on their own (split, transcribe, combine, verify) so an operator
// can rerun a single step against intermediate artifacts left by an earlier
// run. It centralizes configuration resolution, logger construction, and
// backend wiring so subcommands only translate flags into requests.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
