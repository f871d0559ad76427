package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactExt is the file extension of transcript artifacts.
const ArtifactExt = ".txt"

// ArtifactPath returns the transcript artifact location for a chunk file.
func ArtifactPath(dir, chunkPath string) string {
	base := filepath.Base(chunkPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+ArtifactExt)
}

// ValidArtifact reports whether the artifact at path holds a usable
// transcript: non-empty, free of any error report, and carrying a
// timestamped transcript section.
func ValidArtifact(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return false
	}
	return ValidContent(string(data))
}

// ValidContent applies the artifact validity rule to in-memory text.
func ValidContent(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	return !strings.Contains(lower, "error") && strings.Contains(lower, "timestamped transcript:")
}

// FailureMarker is the artifact body written after every attempt failed.
func FailureMarker(fileName string, attempts int, err error) string {
	return fmt.Sprintf("Error processing %s after %d attempts: %v\n", fileName, attempts, err)
}

// succeeded mirrors the success accounting for a freshly generated response.
func succeeded(text string) bool {
	return text != "" && !strings.Contains(strings.ToLower(text), "error")
}
