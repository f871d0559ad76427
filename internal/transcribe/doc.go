// Package transcribe sends audio chunks to the remote transcription service
// and persists one text artifact per chunk.
//
// The Orchestrator runs a bounded worker pool over every .mp3 in a chunk
// directory. Each chunk is uploaded, polled until the service finishes
// ingesting it, and transcribed with the fixed four-section system
// instruction. Failed attempts back off according to the failure class and,
// in multi-region mode, move to the next region in a shared rotation.
// Exhausted chunks receive a failure marker artifact so a later run can
// detect and redo them.
//
// Artifacts that already hold a valid transcript are skipped when resuming,
// which makes re-running a partially failed job cheap.
package transcribe
