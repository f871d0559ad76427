// Package audio resolves audio durations and prepares audio sources.
//
// Prober reads durations natively with audiometa where the container is
// supported and falls back to ffprobe for everything else. Converter extracts
// an mp3 track from video containers so the rest of the pipeline only deals
// with audio files.
package audio
