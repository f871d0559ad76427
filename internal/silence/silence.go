// Package silence detects quiet stretches in an audio file with ffmpeg's
// silencedetect filter.
package silence

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"loom/internal/media"
)

// Interval is a stretch of silence in seconds from the start of the file.
type Interval struct {
	Start float64
	End   float64
}

// Midpoint returns the centre of the interval.
func (i Interval) Midpoint() float64 {
	return (i.Start + i.End) / 2
}

const (
	// DefaultThresholdDB is the loudness below which audio counts as silent.
	DefaultThresholdDB = -40.0
	// DefaultMinSilence is the shortest silence reported.
	DefaultMinSilence = 500 * time.Millisecond
)

var (
	startPattern = regexp.MustCompile(`silence_start: (\d+\.?\d*)`)
	endPattern   = regexp.MustCompile(`silence_end: (\d+\.?\d*)`)
)

// Detector runs silence detection through ffmpeg.
type Detector struct {
	FFmpeg string
	Runner media.CommandRunner
}

// NewDetector constructs a detector for the given ffmpeg binary.
func NewDetector(ffmpegBinary string) *Detector {
	return &Detector{FFmpeg: ffmpegBinary}
}

// Detect returns the silent intervals of path in file order.
func (d *Detector) Detect(ctx context.Context, path string, thresholdDB float64, minSilence time.Duration) ([]Interval, error) {
	binary := strings.TrimSpace(d.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	if minSilence <= 0 {
		minSilence = DefaultMinSilence
	}
	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s",
		strconv.FormatFloat(thresholdDB, 'f', -1, 64),
		strconv.FormatFloat(minSilence.Seconds(), 'f', -1, 64),
	)
	args := []string{"-hide_banner", "-nostats", "-i", path, "-af", filter, "-f", "null", "-"}
	output, err := media.Resolve(d.Runner)(ctx, binary, args...)
	if err != nil {
		return nil, fmt.Errorf("silence detection: %w", err)
	}
	return Parse(output), nil
}

// Parse extracts intervals from silencedetect log output. Each start is paired
// with the next end; pairs whose end does not follow the start are dropped, as
// is a trailing start with no end.
func Parse(output []byte) []Interval {
	var intervals []Interval
	var (
		pending    float64
		hasPending bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := startPattern.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				pending = v
				hasPending = true
			}
		}
		if m := endPattern.FindStringSubmatch(line); m != nil && hasPending {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				if v > pending {
					intervals = append(intervals, Interval{Start: pending, End: v})
				}
				hasPending = false
			}
		}
	}
	return intervals
}
