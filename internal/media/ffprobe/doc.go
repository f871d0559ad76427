// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes its streams and format sections. Result
// helpers count audio streams and resolve a duration, falling back to stream
// durations for containers that omit the format-level value.
package ffprobe
