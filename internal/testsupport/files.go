package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteChunks creates chunk files in dir whose contents carry their length as
// "dur=<seconds>", and returns their paths in order.
func WriteChunks(t testing.TB, dir string, seconds ...float64) []string {
	t.Helper()

	paths := make([]string, 0, len(seconds))
	for i, s := range seconds {
		path := filepath.Join(dir, fmt.Sprintf("chunk_%03d.mp3", i+1))
		WriteFile(t, path, fmt.Sprintf("dur=%g", s))
		paths = append(paths, path)
	}
	return paths
}
