// Package logging assembles the structured slog loggers used across loom.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag records with the run identifier, pipeline stage,
// and chunk name. A no-op logger is provided for tests and for wiring code
// that has no logger to hand.
package logging
