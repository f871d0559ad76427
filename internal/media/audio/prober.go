package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/simonhull/audiometa"

	"loom/internal/logging"
	"loom/internal/media"
	"loom/internal/media/ffprobe"
)

// Prober measures audio durations in seconds.
type Prober struct {
	FFprobe string
	Runner  media.CommandRunner
	Logger  *slog.Logger
	// SkipNative forces the ffprobe path.
	SkipNative bool
}

// NewProber constructs a prober using the given ffprobe binary.
func NewProber(ffprobeBinary string, logger *slog.Logger) *Prober {
	return &Prober{FFprobe: ffprobeBinary, Logger: logger}
}

// Duration returns the playable length of path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if !p.SkipNative {
		seconds, err := nativeDuration(ctx, path)
		if err == nil {
			return seconds, nil
		}
		logger.Debug("native duration unavailable, using ffprobe",
			logging.String("path", path),
			logging.Error(err),
		)
	}

	report, err := ffprobe.Probe(ctx, p.Runner, p.FFprobe, path)
	if err != nil {
		return 0, fmt.Errorf("probe duration of %s: %w", path, err)
	}
	seconds := report.Seconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0, fmt.Errorf("probe duration of %s: no usable duration reported", path)
	}
	return seconds, nil
}

func nativeDuration(ctx context.Context, path string) (float64, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	seconds := file.Audio.Duration.Seconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0, fmt.Errorf("container reported duration %v", file.Audio.Duration)
	}
	return seconds, nil
}
