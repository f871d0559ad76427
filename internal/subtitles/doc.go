// Package subtitles assembles per-chunk transcript artifacts into a single
// SRT file on the global timeline.
//
// Synthesize is stateless: every call re-reads every artifact, so a caller
// can loop on it while an operator repairs the artifacts reported in a
// ParseError. The SRT helpers format, write, and validate SubRip files.
package subtitles
