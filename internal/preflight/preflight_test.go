package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

type healthFunc func(context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestCheckGemini(t *testing.T) {
	ok := CheckGemini(context.Background(), healthFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got: %s", ok.Detail)
	}

	bad := CheckGemini(context.Background(), healthFunc(func(context.Context) error {
		return errors.New("API key not valid")
	}))
	if bad.Passed || bad.Detail != "API key not valid" {
		t.Fatalf("unexpected failure result: %+v", bad)
	}

	slow := CheckGemini(context.Background(), healthFunc(func(context.Context) error {
		return context.DeadlineExceeded
	}))
	if slow.Passed || !strings.Contains(slow.Detail, "timed out") {
		t.Fatalf("unexpected timeout result: %+v", slow)
	}

	if missing := CheckGemini(context.Background(), nil); missing.Passed {
		t.Fatal("expected nil checker to fail")
	}
}

func TestCheckCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckCredentials(cfg); !result.Passed {
		t.Fatalf("expected api key to pass, got %s", result.Detail)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithAPIKey(""))
	if result := CheckCredentials(cfg); result.Passed {
		t.Fatal("expected missing api key to fail")
	}

	cfg = testsupport.NewConfig(t, testsupport.WithAPIKey(""), testsupport.WithVertex("proj-1", "us-central1", "us-east4"))
	result := CheckCredentials(cfg)
	if !result.Passed || !strings.Contains(result.Detail, "proj-1") || !strings.Contains(result.Detail, "2 regions") {
		t.Fatalf("unexpected vertex result: %+v", result)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, failed: %+v", failed)
	}
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"FFmpeg", "FFprobe", "State directory", "Log directory", "Output directory", "Credentials"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing check %q in %s", want, joined)
		}
	}
}

func TestRunAllReportsMissingBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	t.Setenv("PATH", "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	failed := Failed(RunAll(cfg))
	if len(failed) < 2 {
		t.Fatalf("expected ffmpeg and ffprobe failures, got %+v", failed)
	}
}
