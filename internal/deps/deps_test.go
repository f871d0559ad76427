package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Optional", Command: "also-not-present", Optional: true},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[3].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[3].Detail)
	}

	missing := Missing(results)
	if len(missing) != 2 || missing[0].Name != "Missing" || missing[1].Name != "Blank" {
		t.Fatalf("unexpected missing set: %#v", missing)
	}
}

func TestResolveFFprobePrefersSidecar(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobePath := filepath.Join(tmp, executableName("ffprobe"))
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
		t.Fatalf("write ffprobe sidecar: %v", err)
	}

	if got := ResolveFFprobe(ffmpegPath, "ffprobe"); got != ffprobePath {
		t.Fatalf("expected sidecar %q, got %q", ffprobePath, got)
	}
}

func TestResolveFFprobeFallsBackToName(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if got := ResolveFFprobe(ffmpegPath, ""); got != "ffprobe" {
		t.Fatalf("expected PATH fallback, got %q", got)
	}

	// A non-executable sidecar is ignored.
	sidecar := filepath.Join(tmp, executableName("ffprobe"))
	if err := os.WriteFile(sidecar, script, 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	if runtime.GOOS != "windows" {
		if got := ResolveFFprobe(ffmpegPath, "ffprobe"); got != "ffprobe" {
			t.Fatalf("expected non-executable sidecar to be skipped, got %q", got)
		}
	}
}

func TestResolveFFprobeKeepsExplicitPath(t *testing.T) {
	t.Setenv("PATH", "")
	explicit := filepath.Join(t.TempDir(), "custom-ffprobe")
	if got := ResolveFFprobe("ffmpeg", explicit); got != explicit {
		t.Fatalf("expected explicit path, got %q", got)
	}
	if got := ResolveFFprobe("ffmpeg", "ffprobe"); got != "ffprobe" {
		t.Fatalf("expected name when ffmpeg is unresolvable, got %q", got)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
