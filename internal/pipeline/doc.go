// Package pipeline runs a recording end to end: optional video conversion,
// silence-aware splitting, parallel transcription, and SRT synthesis with
// operator correction.
//
// Each run owns its output directory for the duration of the run through an
// advisory lock on .loom.lock, gets a fresh run id that is stamped into the
// context for logging and history, and records its final status in the
// ledger when one is configured. Intermediate artifacts are kept on disk so
// an interrupted run resumes where it stopped; Cleanup removes them only
// after subtitles were written.
package pipeline
