// Package services defines shared utilities consumed by the pipeline stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and chunk names for
//     logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification from the stage that raised them up to the CLI.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
