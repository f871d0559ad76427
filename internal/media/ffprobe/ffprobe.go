package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"loom/internal/media"
)

// entries limits ffprobe output to the fields loom reads.
const entries = "format=duration,format_name:stream=index,codec_type,codec_name,duration"

// Report is the decoded subset of an ffprobe JSON report.
type Report struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one elementary stream in the container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// Format is the container section of the report.
type Format struct {
	Name     string `json:"format_name"`
	Duration string `json:"duration"`
}

// Probe runs ffprobe on path through runner (nil runs the binary directly).
// An empty binary means "ffprobe" on PATH.
func Probe(ctx context.Context, runner media.CommandRunner, binary, path string) (Report, error) {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Report{}, errors.New("ffprobe: empty path")
	}

	output, err := media.Resolve(runner)(ctx, binary,
		"-v", "error", "-hide_banner", "-show_entries", entries, "-of", "json", "--", path)
	if err != nil {
		return Report{}, fmt.Errorf("ffprobe: %w", err)
	}
	var report Report
	if err := json.Unmarshal(output, &report); err != nil {
		return Report{}, fmt.Errorf("ffprobe: decode report: %w", err)
	}
	return report, nil
}

// Audio returns the audio streams in index order.
func (r Report) Audio() []Stream {
	var audio []Stream
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			audio = append(audio, s)
		}
	}
	return audio
}

// Seconds returns the container duration, falling back to the longest audio
// stream when the container omits it. Missing values yield 0 and malformed
// values NaN.
func (r Report) Seconds() float64 {
	if strings.TrimSpace(r.Format.Duration) != "" {
		return seconds(r.Format.Duration)
	}
	longest := 0.0
	for _, s := range r.Audio() {
		if d := seconds(s.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

func seconds(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}
