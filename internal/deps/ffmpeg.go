package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe returns the ffprobe executable to pair with ffmpegCommand.
//
// Static ffmpeg builds ship ffprobe in the same directory, and that copy can
// differ from whatever ffprobe is first on PATH. When ffmpegCommand resolves
// and an executable ffprobe sits next to it, that sidecar is returned;
// otherwise ffprobeCommand is returned unchanged for PATH lookup.
func ResolveFFprobe(ffmpegCommand, ffprobeCommand string) string {
	ffprobeCommand = strings.TrimSpace(ffprobeCommand)
	if ffprobeCommand == "" {
		ffprobeCommand = "ffprobe"
	}
	if strings.ContainsRune(ffprobeCommand, os.PathSeparator) {
		return ffprobeCommand
	}
	ffmpegBinary := strings.TrimSpace(ffmpegCommand)
	if ffmpegBinary == "" {
		return ffprobeCommand
	}
	resolved, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return ffprobeCommand
	}
	candidate := sidecarCandidate(resolved, ffprobeCommand)
	if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
		return candidate
	}
	return ffprobeCommand
}

func sidecarCandidate(primaryPath, name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(primaryPath), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
