package chunking

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"loom/internal/fileutil"
	"loom/internal/logging"
	"loom/internal/media"
)

const (
	// minChunkSeconds is the shortest span worth exporting. Shorter spans
	// are folded into the following chunk.
	minChunkSeconds = 0.1
	// DefaultExportTimeout bounds a single ffmpeg export.
	DefaultExportTimeout = 300 * time.Second
)

// Exporter cuts a source file into chunk files with ffmpeg.
type Exporter struct {
	FFmpeg  string
	Runner  media.CommandRunner
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewExporter constructs an exporter for the given ffmpeg binary.
func NewExporter(ffmpegBinary string, logger *slog.Logger) *Exporter {
	return &Exporter{FFmpeg: ffmpegBinary, Logger: logger}
}

// Export writes one chunk per span between consecutive cut points. Spans of
// 0.1 s or less are skipped without moving the span start, so the fragment
// becomes part of the next chunk. A chunk that fails to export is logged and
// skipped. ErrNoChunks is returned when nothing was written.
func (e *Exporter) Export(ctx context.Context, source string, cuts []float64, total float64, outDir string) ([]Chunk, error) {
	logger := logging.NewComponentLogger(logging.WithContext(ctx, e.Logger), "chunking")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}

	codec := codecArgs(source)
	ends := append(append([]float64(nil), cuts...), total)
	chunks := make([]Chunk, 0, len(ends))
	start := 0.0
	for i, end := range ends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if end <= start+minChunkSeconds {
			continue
		}
		target := filepath.Join(outDir, FileName(i+1))
		if err := e.exportOne(ctx, source, start, end, codec, target); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnWithContext(logger, "chunk export failed", "chunk_export_failed",
				logging.String(logging.FieldChunk, filepath.Base(target)),
				logging.Float64("start", start),
				logging.Float64("end", end),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this span is missing from the subtitles"),
				logging.String(logging.FieldErrorHint, "check the source file for corruption around this time"),
			)
		} else {
			chunks = append(chunks, Chunk{Index: i + 1, Path: target, Start: start, End: end})
			logger.Debug("chunk exported",
				logging.String(logging.FieldChunk, filepath.Base(target)),
				logging.Float64("start", start),
				logging.Float64("end", end),
			)
		}
		start = end
	}

	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	logger.Info("chunks exported",
		logging.Int("count", len(chunks)),
		logging.String("dir", outDir),
	)
	return chunks, nil
}

func (e *Exporter) exportOne(ctx context.Context, source string, start, end float64, codec []string, target string) error {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultExportTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := strings.TrimSpace(e.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{"-i", source, "-ss", formatSeconds(start), "-to", formatSeconds(end)}
	args = append(args, codec...)
	args = append(args, "-map_metadata", "-1", "-loglevel", "error", "-y", target)

	if _, err := media.Resolve(e.Runner)(ctx, binary, args...); err != nil {
		_ = os.Remove(target)
		return err
	}
	if !fileutil.NonEmptyFile(target) {
		_ = os.Remove(target)
		return fmt.Errorf("ffmpeg produced no data for %s", filepath.Base(target))
	}
	return nil
}

// codecArgs stream-copies mp3 sources and re-encodes everything else.
func codecArgs(source string) []string {
	if strings.EqualFold(filepath.Ext(source), ".mp3") {
		return []string{"-c", "copy"}
	}
	return []string{"-vn", "-ar", "44100", "-ac", "2", "-b:a", "192k"}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
