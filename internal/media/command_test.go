package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunReturnsCombinedOutput(t *testing.T) {
	tool := writeScript(t, `echo out; echo err 1>&2`)
	output, err := Run(context.Background(), tool)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(string(output), "out") || !strings.Contains(string(output), "err") {
		t.Fatalf("expected combined output, got %q", output)
	}
}

func TestRunFormatsFailure(t *testing.T) {
	tool := writeScript(t, `echo "Invalid data found" 1>&2; exit 1`)
	_, err := Run(context.Background(), tool, "-i", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") || !strings.HasPrefix(err.Error(), tool+": ") {
		t.Fatalf("unexpected error format: %v", err)
	}
}

func TestRunReportsContextTimeout(t *testing.T) {
	tool := writeScript(t, `exec sleep 5`)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, tool)
	if err == nil || !strings.Contains(err.Error(), "deadline exceeded") {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestResolveDefaultsToRun(t *testing.T) {
	called := false
	custom := func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	}
	if _, err := Resolve(custom)(context.Background(), "x"); err != nil || !called {
		t.Fatal("expected custom runner to be used")
	}
	if Resolve(nil) == nil {
		t.Fatal("expected default runner")
	}
}
