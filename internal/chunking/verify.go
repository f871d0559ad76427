package chunking

import (
	"context"
	"fmt"
	"math"
)

// durationTolerance is the largest total drift still reported as consistent.
const durationTolerance = 0.1

// DurationProber measures a file's duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ChunkDuration is the measured length of one chunk.
type ChunkDuration struct {
	Chunk    Chunk
	Seconds  float64
	ProbeErr error
}

// Verification compares the summed chunk durations against the original.
type Verification struct {
	Original   float64
	Sum        float64
	Diff       float64
	Consistent bool
	Failed     int
	Chunks     []ChunkDuration
}

// Direction describes the drift as "over", "under", or "" when consistent.
func (v Verification) Direction() string {
	switch {
	case v.Consistent:
		return ""
	case v.Diff > 0:
		return "over"
	default:
		return "under"
	}
}

// Verify probes the original and every chunk. Chunks that cannot be probed
// are counted in Failed and contribute nothing to Sum.
func Verify(ctx context.Context, prober DurationProber, original string, chunks []Chunk) (Verification, error) {
	originalSeconds, err := prober.Duration(ctx, original)
	if err != nil {
		return Verification{}, fmt.Errorf("probe original: %w", err)
	}
	result := Verification{Original: originalSeconds, Chunks: make([]ChunkDuration, 0, len(chunks))}
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Verification{}, err
		}
		seconds, probeErr := prober.Duration(ctx, chunk.Path)
		if probeErr != nil {
			result.Failed++
			seconds = 0
		}
		result.Sum += seconds
		result.Chunks = append(result.Chunks, ChunkDuration{Chunk: chunk, Seconds: seconds, ProbeErr: probeErr})
	}
	result.Diff = result.Sum - result.Original
	result.Consistent = math.Abs(result.Diff) < durationTolerance
	return result, nil
}
