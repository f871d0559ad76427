// Package ledger persists run history in SQLite.
//
// Each pipeline run gets a row in runs with its final status and chunk
// counts, and chunk_results holds the outcome of every transcribed chunk.
// The store satisfies transcribe.Recorder so the orchestrator can write
// outcomes as they happen; the run id travels in the context.
//
// The schema is created from the embedded schema.sql on first open. A
// database written by a different schema version is rejected with
// ErrSchemaMismatch; history is disposable, so the fix is to delete it.
package ledger
