package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"loom/internal/chunking"
	"loom/internal/config"
	"loom/internal/pipeline"
	"loom/internal/testsupport"
	"loom/internal/transcribe"
)

const goodTranscript = "Transcript:\nhello\n\nTranslation:\nni hao\n\nTimestamped Transcript:\n[00:01.000] hello\n\nTimestamped Translation:\n[00:01.000] ni hao\n"

// fileProber reads durations written as "dur=<seconds>".
type fileProber struct{}

func (fileProber) Duration(_ context.Context, path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "dur=")
	if !ok {
		return 0, fmt.Errorf("no duration in %s", path)
	}
	return strconv.ParseFloat(value, 64)
}

// fakeFFmpeg writes chunk files carrying their planned length and reports a
// single silence between 8s and 9s.
func fakeFFmpeg(_ context.Context, _ string, args ...string) ([]byte, error) {
	switch {
	case slices.Contains(args, "-ss"):
		start, _ := strconv.ParseFloat(args[slices.Index(args, "-ss")+1], 64)
		end, _ := strconv.ParseFloat(args[slices.Index(args, "-to")+1], 64)
		return nil, os.WriteFile(args[len(args)-1], []byte(fmt.Sprintf("dur=%.3f", end-start)), 0o644)
	case slices.Contains(args, "-af"):
		return []byte("silence_start: 8.0\nsilence_end: 9.0\n"), nil
	default:
		return nil, os.WriteFile(args[len(args)-2], []byte("dur=25"), 0o644)
	}
}

type stubBackend struct {
	mu    sync.Mutex
	calls int
}

func (b *stubBackend) Upload(_ context.Context, path string) (transcribe.Upload, error) {
	return transcribe.Upload{Name: "files/" + filepath.Base(path), State: transcribe.FileStateActive}, nil
}

func (b *stubBackend) Get(_ context.Context, name string) (transcribe.Upload, error) {
	return transcribe.Upload{Name: name, State: transcribe.FileStateActive}, nil
}

func (b *stubBackend) Delete(context.Context, string) error { return nil }

func (b *stubBackend) Generate(context.Context, transcribe.GenerateRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return goodTranscript, nil
}

// healthyFactory satisfies the health check used by loom check.
type healthyFactory struct {
	transcribe.BackendFactory
	err error
}

func (f healthyFactory) HealthCheck(context.Context) error { return f.err }

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	backend    *stubBackend
	healthErr  error
	runs       int
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		backend:    &stubBackend{},
	}
}

func (e *cliTestEnv) configure(ctx *commandContext) {
	ctx.backends = func(*config.Config) transcribe.BackendFactory {
		factory := transcribe.BackendFactoryFunc(func(context.Context, string) (transcribe.Backend, error) {
			return e.backend, nil
		})
		return healthyFactory{BackendFactory: factory, err: e.healthErr}
	}
	ctx.prober = func(*config.Config, *slog.Logger) chunking.DurationProber { return fileProber{} }
	ctx.runnerOptions = []pipeline.Option{
		pipeline.WithCommandRunner(fakeFFmpeg),
		pipeline.WithProber(fileProber{}),
		pipeline.WithIDGenerator(func() string {
			e.runs++
			return fmt.Sprintf("run-%d", e.runs)
		}),
		pipeline.WithTranscribeOptions(transcribe.WithSleeper(func(time.Duration) {})),
	}
}

// writeMedia creates a fake recording under the test base directory.
func (e *cliTestEnv) writeMedia(t *testing.T, name string, seconds float64) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "media", name)
	testsupport.WriteFile(t, path, fmt.Sprintf("dur=%g", seconds))
	return path
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	var configure func(*commandContext)
	flags := []string{}
	if env != nil {
		configure = env.configure
		flags = append(flags, "--config", env.configPath)
	}
	cmd := buildRootCommand(configure)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\noutput_dir = %q\nlog_dir = %q\nstate_dir = %q\n\n[gemini]\napi_key = %q\n\n[logging]\nformat = \"console\"\nlevel = \"error\"\n",
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Gemini.APIKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
