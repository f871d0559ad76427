package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"loom/internal/correction"
	"loom/internal/ledger"
	"loom/internal/pipeline"
	"loom/internal/services"
	"loom/internal/subtitles"
	"loom/internal/testsupport"
	"loom/internal/transcribe"
)

const goodTranscript = "Transcript:\nhello\n\nTranslation:\nni hao\n\nTimestamped Transcript:\n[00:01.000] hello\n\nTimestamped Translation:\n[00:01.000] ni hao\n"

// fileProber reads durations written as "dur=<seconds>" by the fake ffmpeg.
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

type fakeFFmpeg struct {
	mu         sync.Mutex
	silenceOut string
	silenceErr error
	exports    int
	converts   int
}

func (f *fakeFFmpeg) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name != "ffmpeg" {
		return nil, fmt.Errorf("unexpected binary %s", name)
	}
	switch {
	case slices.Contains(args, "-ss"):
		f.exports++
		start, _ := strconv.ParseFloat(args[slices.Index(args, "-ss")+1], 64)
		end, _ := strconv.ParseFloat(args[slices.Index(args, "-to")+1], 64)
		target := args[len(args)-1]
		return nil, os.WriteFile(target, []byte(fmt.Sprintf("dur=%.3f", end-start)), 0o644)
	case slices.Contains(args, "-af"):
		return []byte(f.silenceOut), f.silenceErr
	default:
		f.converts++
		target := args[len(args)-2]
		return nil, os.WriteFile(target, []byte("dur=25"), 0o644)
	}
}

type stubBackend struct {
	mu      sync.Mutex
	respond map[string]string
	calls   int
}

func (b *stubBackend) Upload(_ context.Context, path string) (transcribe.Upload, error) {
	return transcribe.Upload{Name: "files/" + filepath.Base(path), State: transcribe.FileStateActive}, nil
}

func (b *stubBackend) Get(_ context.Context, name string) (transcribe.Upload, error) {
	return transcribe.Upload{Name: name, State: transcribe.FileStateActive}, nil
}

func (b *stubBackend) Delete(context.Context, string) error { return nil }

func (b *stubBackend) Generate(_ context.Context, req transcribe.GenerateRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if text, ok := b.respond[strings.TrimPrefix(req.Upload.Name, "files/")]; ok {
		return text, nil
	}
	return goodTranscript, nil
}

func (b *stubBackend) factory() transcribe.BackendFactory {
	return transcribe.BackendFactoryFunc(func(context.Context, string) (transcribe.Backend, error) {
		return b, nil
	})
}

type harness struct {
	ffmpeg  *fakeFFmpeg
	backend *stubBackend
	store   *ledger.Store
	input   string
}

func newHarness(t *testing.T, inputName string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	input := filepath.Join(testsupport.BaseDir(cfg), "media", inputName)
	if err := os.MkdirAll(filepath.Dir(input), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(input, []byte("dur=25"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &harness{
		ffmpeg:  &fakeFFmpeg{silenceOut: "silence_start: 8.0\nsilence_end: 9.0\n"},
		backend: &stubBackend{respond: map[string]string{}},
		store:   testsupport.MustOpenLedger(t, cfg),
		input:   input,
	}
}

func (h *harness) runner(opts ...pipeline.Option) *pipeline.Runner {
	base := []pipeline.Option{
		pipeline.WithCommandRunner(h.ffmpeg.run),
		pipeline.WithProber(fileProber{}),
		pipeline.WithHistory(h.store),
		pipeline.WithIDGenerator(func() string { return "run-test" }),
		pipeline.WithTranscribeOptions(
			transcribe.WithSleeper(func(time.Duration) {}),
			transcribe.WithRand(func() float64 { return 0 }),
		),
	}
	return pipeline.NewRunner(h.backend.factory(), append(base, opts...)...)
}

func (h *harness) request() pipeline.Request {
	return pipeline.Request{
		Input: h.input,
		Split: pipeline.SplitOptions{MaxChunkSeconds: 10},
	}
}

func readSRT(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	return string(data)
}

func TestRunProducesSubtitles(t *testing.T) {
	h := newHarness(t, "talk.mp3")
	req := h.request()
	req.Verify = true

	result, err := h.runner().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantDir := filepath.Join(filepath.Dir(h.input), "talk")
	if result.OutputDir != wantDir {
		t.Fatalf("output dir = %q, want %q", result.OutputDir, wantDir)
	}
	if len(result.Chunks) != 3 || h.ffmpeg.exports != 3 {
		t.Fatalf("expected 3 chunks, got %d (exports %d)", len(result.Chunks), h.ffmpeg.exports)
	}
	if result.SRTPath != filepath.Join(wantDir, "talk.srt") {
		t.Fatalf("unexpected srt path %q", result.SRTPath)
	}
	srt := readSRT(t, result.SRTPath)
	for _, want := range []string{
		"00:00:01,000 --> 00:00:02,500\nni hao",
		"00:00:09,500 --> 00:00:11,000\nni hao",
		"00:00:19,500 --> 00:00:21,000\nni hao",
	} {
		if !strings.Contains(srt, want) {
			t.Fatalf("srt missing %q:\n%s", want, srt)
		}
	}
	if result.Verification == nil || !result.Verification.Consistent {
		t.Fatalf("expected consistent verification, got %+v", result.Verification)
	}
	if _, err := os.Stat(filepath.Join(wantDir, pipeline.LockFileName)); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}

	run, err := h.store.GetRun(context.Background(), "run-test")
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != ledger.StatusCompleted || run.Chunks != 3 || run.Succeeded != 3 || run.SRTPath != result.SRTPath {
		t.Fatalf("unexpected history row: %+v", run)
	}
	chunks, err := h.store.ChunkResults(context.Background(), "run-test")
	if err != nil || len(chunks) != 3 {
		t.Fatalf("ChunkResults = %d, %v", len(chunks), err)
	}
}

func TestRunDegradesWhenSilenceDetectionFails(t *testing.T) {
	h := newHarness(t, "talk.mp3")
	h.ffmpeg.silenceErr = errors.New("decoder exploded")

	result, err := h.runner().Run(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Chunks) != 3 {
		t.Fatalf("expected uniform split into 3 chunks, got %d", len(result.Chunks))
	}
	if result.Chunks[1].Start != 10 || result.Chunks[2].Start != 20 {
		t.Fatalf("expected cuts at 10 and 20, got %+v", result.Chunks)
	}
}

func TestRunStopDuringCorrection(t *testing.T) {
	h := newHarness(t, "talk.mp3")
	h.backend.respond["chunk_002.mp3"] = "Transcript:\nno timing here\n"

	commands := make(chan correction.Command, 1)
	commands <- correction.StopProcessing
	var notified []subtitles.ParseErrorRecord
	runner := h.runner(pipeline.WithCorrection(commands, func(records []subtitles.ParseErrorRecord) {
		notified = append(notified, records...)
	}))

	result, err := runner.Run(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Stopped {
		t.Fatal("expected stopped result")
	}
	if len(notified) != 1 || notified[0].File != "chunk_002.txt" || notified[0].Reason != subtitles.ReasonMissingSection {
		t.Fatalf("unexpected records: %+v", notified)
	}
	if _, err := os.Stat(filepath.Join(result.OutputDir, "talk.srt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no srt after stop, stat err = %v", err)
	}
	run, _ := h.store.GetRun(context.Background(), "run-test")
	if run == nil || run.Status != ledger.StatusStopped {
		t.Fatalf("expected stopped history row, got %+v", run)
	}
}

func TestRunRetriesAfterCorrection(t *testing.T) {
	h := newHarness(t, "talk.mp3")
	h.backend.respond["chunk_002.mp3"] = "Transcript:\nno timing here\n"

	commands := make(chan correction.Command, 1)
	var fixErr error
	runner := h.runner(pipeline.WithCorrection(commands, func(records []subtitles.ParseErrorRecord) {
		for _, r := range records {
			if err := os.WriteFile(r.Path, []byte(goodTranscript), 0o644); err != nil {
				fixErr = err
			}
		}
		commands <- correction.RetryCombine
	}))

	result, err := runner.Run(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fixErr != nil {
		t.Fatalf("fix artifact: %v", fixErr)
	}
	if result.Stopped || len(result.Subtitles.Entries) != 3 {
		t.Fatalf("expected 3 entries after retry, got %+v", result.Subtitles)
	}
	if h.backend.calls != 3 {
		t.Fatalf("correction must not re-transcribe, got %d calls", h.backend.calls)
	}
}

func TestRunParseErrorWithoutOperatorFails(t *testing.T) {
	h := newHarness(t, "talk.mp3")
	h.backend.respond["chunk_001.mp3"] = "Transcript:\nno timing here\n"

	_, err := h.runner().Run(context.Background(), h.request())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var perr *subtitles.ParseError
	if !errors.As(err, &perr) || len(perr.Records) != 1 {
		t.Fatalf("expected wrapped parse error, got %v", err)
	}
	run, _ := h.store.GetRun(context.Background(), "run-test")
	if run == nil || run.Status != ledger.StatusFailed || run.ErrorMessage == "" {
		t.Fatalf("expected failed history row, got %+v", run)
	}
}

func TestRunConvertsVideoAndReusesChunks(t *testing.T) {
	h := newHarness(t, "lecture.mp4")
	chunksDir := filepath.Join(t.TempDir(), "mine")
	testsupport.WriteChunks(t, chunksDir, 5, 7)
	req := h.request()
	req.SkipSplit = true
	req.ChunksDir = chunksDir
	req.Cleanup = true

	result, err := h.runner().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.ffmpeg.converts != 1 || h.ffmpeg.exports != 0 {
		t.Fatalf("expected one conversion and no exports, got %d/%d", h.ffmpeg.converts, h.ffmpeg.exports)
	}
	if result.ChunksDir != chunksDir || len(result.Chunks) != 2 {
		t.Fatalf("expected reused chunks, got %q %d", result.ChunksDir, len(result.Chunks))
	}
	srt := readSRT(t, result.SRTPath)
	if !strings.Contains(srt, "00:00:06,000 --> 00:00:07,500") {
		t.Fatalf("second chunk not offset by first chunk duration:\n%s", srt)
	}
	if _, err := os.Stat(chunksDir); err != nil {
		t.Fatalf("user chunk dir must survive cleanup: %v", err)
	}
	for _, gone := range []string{result.TranscriptsDir, result.AudioPath} {
		if _, err := os.Stat(gone); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err = %v", gone, err)
		}
	}
}

func TestRunSetupErrors(t *testing.T) {
	h := newHarness(t, "talk.mp3")
	runner := h.runner()

	_, err := runner.Run(context.Background(), pipeline.Request{Input: filepath.Join(t.TempDir(), "missing.mp3")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing input error = %v", err)
	}

	_, err = runner.Run(context.Background(), pipeline.Request{Input: t.TempDir()})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("directory input error = %v", err)
	}

	outDir := filepath.Join(t.TempDir(), "busy")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(outDir, pipeline.LockFileName))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("pre-lock: %v %v", ok, err)
	}
	defer held.Unlock()
	req := h.request()
	req.OutputDir = outDir
	if _, err := runner.Run(context.Background(), req); !errors.Is(err, pipeline.ErrOutputLocked) {
		t.Fatalf("locked output error = %v", err)
	}
}

func TestRunClientInitFailureIsConfiguration(t *testing.T) {
	h := newHarness(t, "talk.mp3")
	factory := transcribe.BackendFactoryFunc(func(context.Context, string) (transcribe.Backend, error) {
		return nil, errors.New("missing api key")
	})
	runner := pipeline.NewRunner(factory,
		pipeline.WithCommandRunner(h.ffmpeg.run),
		pipeline.WithProber(fileProber{}),
	)
	_, err := runner.Run(context.Background(), h.request())
	if !errors.Is(err, services.ErrConfiguration) || !errors.Is(err, transcribe.ErrClientInit) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
