package pipeline

import (
	"time"

	"loom/internal/chunking"
	"loom/internal/cues"
	"loom/internal/subtitles"
	"loom/internal/transcribe"
)

const (
	// ChunksDirName is the default chunk directory inside the output dir.
	ChunksDirName = "audio_chunks"
	// TranscriptsDirName holds one transcript artifact per chunk.
	TranscriptsDirName = "intermediate_transcripts"
	// LockFileName guards an output directory against concurrent runs.
	LockFileName = ".loom.lock"

	DefaultMaxChunkSeconds = 300.0
	DefaultMinSilence      = 500 * time.Millisecond
	DefaultThresholdDB     = -40.0
)

// SplitOptions controls silence detection and chunk length.
type SplitOptions struct {
	MaxChunkSeconds float64
	MinSilence      time.Duration
	ThresholdDB     float64
}

func (o SplitOptions) withDefaults() SplitOptions {
	if o.MaxChunkSeconds <= 0 {
		o.MaxChunkSeconds = DefaultMaxChunkSeconds
	}
	if o.MinSilence <= 0 {
		o.MinSilence = DefaultMinSilence
	}
	if o.ThresholdDB == 0 {
		o.ThresholdDB = DefaultThresholdDB
	}
	return o
}

// Request describes one end-to-end run.
type Request struct {
	Input     string
	OutputDir string
	// SkipSplit reuses ChunksDir when it exists instead of splitting again.
	SkipSplit bool
	ChunksDir string
	Cleanup   bool
	// Verify compares summed chunk durations against the source.
	Verify bool
	// Watch retries synthesis when an offending transcript is rewritten.
	Watch bool

	Mode             cues.Mode
	FirstChunkOffset float64
	Strict           bool

	Split      SplitOptions
	Transcribe transcribe.Options
}

// Result describes what a run produced.
type Result struct {
	RunID          string
	OutputDir      string
	AudioPath      string
	ChunksDir      string
	TranscriptsDir string
	SRTPath        string
	Chunks         []chunking.Chunk
	Transcription  transcribe.Summary
	Subtitles      subtitles.Output
	Verification   *chunking.Verification
	// Stopped is set when the operator ended the run during correction.
	Stopped bool
	Elapsed time.Duration
}
