package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/pipeline"
	"loom/internal/preflight"
	"loom/internal/services"
	"loom/internal/testsupport"
)

func TestRunCommandWritesSubtitles(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeMedia(t, "talk.mp3", 25)

	out, _, err := runCLI(t, env, "run", input, "--max-length", "10", "--verify")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "loom run run-1")
	requireContains(t, out, "3 transcribed, 0 reused, 0 failed")
	requireContains(t, out, "matches")

	srtPath := filepath.Join(env.cfg.Paths.OutputDir, "talk", "talk.srt")
	requireContains(t, out, srtPath)
	data, err := os.ReadFile(srtPath)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	requireContains(t, string(data), "00:00:09,500 --> 00:00:11,000")

	out, _, err = runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "run-1")
	requireContains(t, out, "completed")
	requireContains(t, out, "3/3")

	out, _, err = runCLI(t, env, "history", "run-1")
	if err != nil {
		t.Fatalf("history detail: %v", err)
	}
	requireContains(t, out, "chunk_003.mp3")
	requireContains(t, out, srtPath)
}

func TestRunCommandResumesTranscripts(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeMedia(t, "talk.mp3", 25)

	if _, _, err := runCLI(t, env, "run", input, "--max-length", "10"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	out, _, err := runCLI(t, env, "run", input, "--max-length", "10")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	requireContains(t, out, "0 transcribed, 3 reused")
	if env.backend.calls != 3 {
		t.Fatalf("expected 3 backend calls across both runs, got %d", env.backend.calls)
	}

	if _, _, err := runCLI(t, env, "run", input, "--max-length", "10", "--no-skip-existing"); err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if env.backend.calls != 6 {
		t.Fatalf("expected forced rerun to transcribe again, got %d calls", env.backend.calls)
	}
}

func TestRunCommandErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		env := setupCLITestEnv(t)
		_, _, err := runCLI(t, env, "run", filepath.Join(env.baseDir, "absent.mp3"))
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		env := setupCLITestEnv(t, testsupport.WithAPIKey(""))
		input := env.writeMedia(t, "talk.mp3", 25)
		_, _, err := runCLI(t, env, "run", input)
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
		requireContains(t, err.Error(), "gemini.api_key")
	})

	t.Run("invalid flag value", func(t *testing.T) {
		env := setupCLITestEnv(t)
		input := env.writeMedia(t, "talk.mp3", 25)
		_, _, err := runCLI(t, env, "run", input, "--max-length", "0")
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("missing ffmpeg", func(t *testing.T) {
		env := setupCLITestEnv(t)
		input := env.writeMedia(t, "talk.mp3", 25)
		t.Setenv("PATH", "")
		_, _, err := runCLI(t, env, "run", input)
		if !errors.Is(err, services.ErrExternalTool) {
			t.Fatalf("expected ErrExternalTool, got %v", err)
		}
	})
}

func TestSplitCommandListsChunks(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeMedia(t, "talk.mp3", 25)

	out, _, err := runCLI(t, env, "split", input, "--max-length", "10")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	target := filepath.Join(filepath.Dir(input), "talk", pipeline.ChunksDirName)
	requireContains(t, out, "Wrote 3 chunks to "+target)
	requireContains(t, out, "chunk_002.mp3")
	requireContains(t, out, "18.500")
	for _, name := range []string{"chunk_001.mp3", "chunk_002.mp3", "chunk_003.mp3"} {
		if _, err := os.Stat(filepath.Join(target, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestTranscribeThenCombine(t *testing.T) {
	env := setupCLITestEnv(t)
	chunksDir := filepath.Join(env.baseDir, "work", pipeline.ChunksDirName)
	testsupport.WriteChunks(t, chunksDir, 5, 7)

	out, _, err := runCLI(t, env, "transcribe", chunksDir)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	requireContains(t, out, "2 chunks: 2 transcribed, 0 reused, 0 failed")
	transcripts := filepath.Join(env.baseDir, "work", pipeline.TranscriptsDirName)
	requireContains(t, out, "Transcripts in "+transcripts)

	srtPath := filepath.Join(env.baseDir, "work", "out.srt")
	out, _, err = runCLI(t, env, "combine", chunksDir, transcripts, srtPath, "--content", "transcript")
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	requireContains(t, out, "Wrote 2 subtitles from 2 chunks")
	data, err := os.ReadFile(srtPath)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	srt := string(data)
	requireContains(t, srt, "00:00:06,000 --> 00:00:07,500\nhello")
	if strings.Contains(srt, "ni hao") {
		t.Fatalf("transcript mode should not emit translations:\n%s", srt)
	}
}

func TestCombineReportsBrokenTranscripts(t *testing.T) {
	env := setupCLITestEnv(t)
	chunksDir := filepath.Join(env.baseDir, "work", pipeline.ChunksDirName)
	testsupport.WriteChunks(t, chunksDir, 5)
	transcripts := filepath.Join(env.baseDir, "work", pipeline.TranscriptsDirName)
	testsupport.WriteFile(t, filepath.Join(transcripts, "chunk_001.txt"), "Transcript:\nno timing here\n")

	_, _, err := runCLI(t, env, "combine", chunksDir, transcripts, filepath.Join(env.baseDir, "out.srt"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if hint := services.ExitHint(err); !strings.Contains(hint, "loom combine") {
		t.Fatalf("unexpected hint %q", hint)
	}
}

func TestVerifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	original := env.writeMedia(t, "talk.mp3", 12)
	chunksDir := filepath.Join(env.baseDir, "work", pipeline.ChunksDirName)
	testsupport.WriteChunks(t, chunksDir, 5, 7)

	out, _, err := runCLI(t, env, "verify", original, chunksDir)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	requireContains(t, out, "consistent: yes")

	good := filepath.Join(env.baseDir, "good.srt")
	testsupport.WriteFile(t, good, "1\n00:00:01,000 --> 00:00:02,000\nhello\n")
	out, _, err = runCLI(t, env, "verify", original, chunksDir, "--srt", good)
	if err != nil {
		t.Fatalf("verify good srt: %v", err)
	}
	requireContains(t, out, "1 entries, ends at 00:00:02,000")

	bad := filepath.Join(env.baseDir, "bad.srt")
	testsupport.WriteFile(t, bad, "1\n00:00:03,000 --> 00:00:02,000\nbackwards\n")
	out, _, err = runCLI(t, env, "verify", original, chunksDir, "--srt", bad)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad srt, got %v", err)
	}
	requireContains(t, out, "issue(s)")
}

func TestVerifyCommandReportsDrift(t *testing.T) {
	env := setupCLITestEnv(t)
	original := env.writeMedia(t, "talk.mp3", 20)
	chunksDir := filepath.Join(env.baseDir, "work", pipeline.ChunksDirName)
	testsupport.WriteChunks(t, chunksDir, 5, 7)

	out, _, err := runCLI(t, env, "verify", original, chunksDir)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	requireContains(t, out, "consistent: no")
	requireContains(t, out, "-8.000")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}

	out, _, err := runCLI(t, env, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, preflight.GeminiCheckName)
	requireContains(t, out, "API reachable")
	requireContains(t, out, "All checks passed")

	env.healthErr = errors.New("permission denied")
	_, _, err = runCLI(t, env, "check")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration when the API check fails, got %v", err)
	}

	out, _, err = runCLI(t, env, "check", "--offline")
	if err != nil {
		t.Fatalf("check --offline: %v", err)
	}
	if strings.Contains(out, preflight.GeminiCheckName) || strings.Contains(out, "API reachable") {
		t.Fatalf("offline check should skip the API: %s", out)
	}
	requireContains(t, out, "Gemini API key set")
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, "API key configured")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, nil, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}
