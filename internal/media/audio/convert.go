package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/fileutil"
	"loom/internal/media"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mkv":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".m4v":  {},
}

// IsVideo reports whether path has a video container extension.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Converter extracts audio tracks with ffmpeg.
type Converter struct {
	FFmpeg string
	Runner media.CommandRunner
}

// NewConverter constructs a converter for the given ffmpeg binary.
func NewConverter(ffmpegBinary string) *Converter {
	return &Converter{FFmpeg: ffmpegBinary}
}

// ExtractMP3 writes the audio of video into outDir as <stem>.mp3 and returns its path.
func (c *Converter) ExtractMP3(ctx context.Context, video, outDir string) (string, error) {
	binary := strings.TrimSpace(c.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create conversion dir: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	target := filepath.Join(outDir, stem+".mp3")

	args := []string{"-i", video, "-q:a", "0", "-map", "a", "-vn", target, "-y"}
	if _, err := media.Resolve(c.Runner)(ctx, binary, args...); err != nil {
		return "", fmt.Errorf("extract audio from %s: %w", video, err)
	}
	if !fileutil.NonEmptyFile(target) {
		return "", fmt.Errorf("extract audio from %s: output %s missing or empty", video, target)
	}
	return target, nil
}
