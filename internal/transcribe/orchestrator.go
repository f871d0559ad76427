package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"loom/internal/chunking"
	"loom/internal/fileutil"
	"loom/internal/logging"
	"loom/internal/services"
)

const (
	DefaultMaxWorkers   = 2
	DefaultMaxRetries   = 5
	DefaultInitialDelay = 3 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultTemperature  = float32(0.2)

	deleteTimeout = 30 * time.Second
)

var (
	// ErrClientInit reports that no backend could be constructed.
	ErrClientInit = errors.New("transcription client initialization failed")
	// ErrNoAudioDir reports a missing chunk directory.
	ErrNoAudioDir = errors.New("audio directory not found")
	// ErrNoChunks reports a chunk directory without any .mp3 files.
	ErrNoChunks = errors.New("no .mp3 files found")

	errUploadFailed    = errors.New("audio file upload failed processing")
	errSuspectResponse = errors.New("response was empty or reported an error")
)

// Status is the final state of one chunk within a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	Model             string
	TargetLanguage    string
	MaxWorkers        int
	MaxRetries        int
	InitialDelay      time.Duration
	PollInterval      time.Duration
	SkipExisting      bool
	RequestsPerMinute int
	MultiRegion       bool
	Regions           []string
}

// Outcome records how a single chunk finished.
type Outcome struct {
	Chunk    string
	Status   Status
	Attempts int
	Region   string
	Err      error
}

// Summary aggregates a transcription run.
type Summary struct {
	Total     int
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
	Elapsed   time.Duration
	Outcomes  []Outcome
}

// NewlyProcessed is the number of chunks transcribed during this run.
func (s Summary) NewlyProcessed() int {
	return s.Succeeded - s.Skipped
}

// Recorder persists chunk outcomes, typically into the run ledger.
type Recorder interface {
	RecordChunk(ctx context.Context, outcome Outcome) error
}

// Observer receives each outcome along with run progress.
type Observer func(outcome Outcome, done, total int)

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSleeper overrides how backoff and poll waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *Orchestrator) {
		o.sleeper = sleeper
	}
}

// WithRand overrides the source of uniform [0,1) values used for jitter.
func WithRand(fn func() float64) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.randFloat = fn
		}
	}
}

// WithRecorder attaches a sink for per-chunk outcomes.
func WithRecorder(rec Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = rec
	}
}

// WithObserver attaches a progress callback.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// Orchestrator transcribes a directory of chunks with a bounded worker pool.
type Orchestrator struct {
	factory   BackendFactory
	opts      Options
	logger    *slog.Logger
	sleeper   func(time.Duration)
	randFloat func() float64
	recorder  Recorder
	observer  Observer
	regions   *regionRotator
	limiter   *rate.Limiter
}

// New constructs an orchestrator over the given backend factory.
func New(factory BackendFactory, opts Options, options ...Option) *Orchestrator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	} else if opts.InitialDelay == 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if strings.TrimSpace(opts.TargetLanguage) == "" {
		opts.TargetLanguage = DefaultTargetLanguage
	}
	o := &Orchestrator{
		factory:   factory,
		opts:      opts,
		logger:    logging.NewNop(),
		randFloat: rand.Float64,
		regions:   newRegionRotator(opts.Regions),
	}
	if opts.RequestsPerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60), 1)
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run transcribes every .mp3 in audioDir into intermediateDir. Individual
// chunk failures are reported in the summary; the returned error covers
// setup problems and cancellation only.
func (o *Orchestrator) Run(ctx context.Context, audioDir, intermediateDir string) (Summary, error) {
	ctx = services.WithStage(ctx, "transcribe")
	logger := logging.NewComponentLogger(logging.WithContext(ctx, o.logger), "transcribe")

	if o.factory == nil {
		return Summary{}, fmt.Errorf("%w: no backend factory configured", ErrClientInit)
	}
	if _, err := o.factory.Backend(ctx, ""); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrClientInit, err)
	}
	if err := os.MkdirAll(intermediateDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create intermediate dir: %w", err)
	}
	files, err := listAudio(audioDir)
	if err != nil {
		return Summary{}, err
	}

	workers := min(o.opts.MaxWorkers, len(files))
	mode := "gemini api"
	if o.opts.MultiRegion {
		mode = "vertex multi-region"
	}
	logger.Info("transcription started",
		logging.Int("chunks", len(files)),
		logging.Int("workers", workers),
		logging.String("model", o.opts.Model),
		logging.String("mode", mode),
	)

	started := time.Now()
	t := &tally{total: len(files), sampler: logging.NewProgressSampler(10)}
	jobs := make(chan string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers + 1)
	g.Go(func() error {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			w := &worker{factory: o.factory}
			for path := range jobs {
				outcome, err := o.processChunk(gctx, w, path, intermediateDir)
				if err != nil {
					return err
				}
				o.report(gctx, logger, t, outcome)
			}
			return nil
		})
	}
	runErr := g.Wait()

	summary := t.summary(time.Since(started))
	if runErr != nil {
		return summary, runErr
	}
	logger.Info("transcription complete",
		logging.String("success", fmt.Sprintf("%d/%d", summary.Succeeded, summary.Total)),
		logging.Int("skipped", summary.Skipped),
		logging.Int("newly_processed", summary.NewlyProcessed()),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// listAudio returns the chunk paths in dir in chunk-index order, using the
// same discovery rules as the synthesizer.
func listAudio(dir string) ([]string, error) {
	chunks, err := chunking.List(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNoAudioDir, dir)
	case errors.Is(err, chunking.ErrNoChunks):
		return nil, fmt.Errorf("%w in %s", ErrNoChunks, dir)
	case err != nil:
		return nil, fmt.Errorf("read audio dir: %w", err)
	}
	files := make([]string, len(chunks))
	for i, c := range chunks {
		files[i] = c.Path
	}
	return files, nil
}

func (o *Orchestrator) report(ctx context.Context, logger *slog.Logger, t *tally, outcome Outcome) {
	done, total, logIt := t.add(outcome)
	attrs := []logging.Attr{
		logging.String(logging.FieldChunk, outcome.Chunk),
		logging.String("status", string(outcome.Status)),
		logging.Int("done", done),
		logging.Int("total", total),
	}
	if outcome.Status == StatusFailed {
		logging.WarnWithContext(logger, "chunk transcription failed", "chunk_failed",
			append(attrs,
				logging.Int("attempts", outcome.Attempts),
				logging.Error(outcome.Err),
				logging.String(logging.FieldImpact, "chunk has no subtitles until it is retried"),
				logging.String(logging.FieldErrorHint, "rerun the same command; valid transcripts are skipped"),
			)...)
	} else if logIt {
		logger.Info("transcription progress", logging.Args(attrs...)...)
	} else {
		logger.Debug("transcription progress", logging.Args(attrs...)...)
	}
	if o.recorder != nil {
		if err := o.recorder.RecordChunk(ctx, outcome); err != nil {
			logging.WarnWithContext(logger, "failed to record chunk outcome", "ledger_write_failed",
				logging.String(logging.FieldChunk, outcome.Chunk),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history is incomplete"),
			)
		}
	}
	if o.observer != nil {
		o.observer(outcome, done, total)
	}
}

// processChunk returns a non-nil error only when the context is done.
func (o *Orchestrator) processChunk(ctx context.Context, w *worker, path, intermediateDir string) (Outcome, error) {
	name := filepath.Base(path)
	artifact := ArtifactPath(intermediateDir, path)
	outcome := Outcome{Chunk: name}

	if o.opts.SkipExisting && ValidArtifact(artifact) {
		outcome.Status = StatusSkipped
		return outcome, nil
	}

	ctx = services.WithChunk(ctx, name)
	logger := logging.NewComponentLogger(logging.WithContext(ctx, o.logger), "transcribe")

	if err := o.sleep(ctx, time.Duration(o.uniform(0.5, 1.5)*float64(time.Second))); err != nil {
		return outcome, err
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return outcome, err
		}
	}

	retries := o.opts.MaxRetries
	region := ""
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if o.opts.MultiRegion && attempt > 0 {
			region = o.regions.next()
			logger.Info("switching region", logging.String("region", region), logging.Int("attempt", attempt+1))
		}
		outcome.Attempts = attempt + 1
		outcome.Region = region

		text, err := o.attempt(ctx, w, region, path, artifact)
		if err == nil {
			if succeeded(text) {
				outcome.Status = StatusSucceeded
			} else {
				outcome.Status = StatusFailed
				outcome.Err = errSuspectResponse
			}
			return outcome, nil
		}
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		lastErr = err
		if attempt >= retries-1 {
			break
		}
		class := classify(err)
		delay := o.backoffDelay(class, attempt)
		logger.Warn("transcription attempt failed",
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", retries),
			logging.String("failure_class", class.String()),
			logging.Duration("retry_in", delay),
			logging.Error(err),
		)
		if err := o.sleep(ctx, delay); err != nil {
			return outcome, err
		}
	}

	outcome.Status = StatusFailed
	outcome.Err = lastErr
	if err := fileutil.WriteFileAtomic(artifact, []byte(FailureMarker(name, retries, lastErr)), 0o644); err != nil {
		logger.Error("failed to write failure marker", logging.String("path", artifact), logging.Error(err))
	}
	return outcome, nil
}

func (o *Orchestrator) attempt(ctx context.Context, w *worker, region, path, artifact string) (string, error) {
	backend, err := w.backendFor(ctx, region)
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}
	upload, err := backend.Upload(ctx, path)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer o.deleteUpload(ctx, backend, upload.Name)

	for upload.State == FileStateProcessing {
		if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
			return "", err
		}
		upload, err = backend.Get(ctx, upload.Name)
		if err != nil {
			return "", fmt.Errorf("poll upload: %w", err)
		}
	}
	if upload.State == FileStateFailed {
		return "", errUploadFailed
	}

	text, err := backend.Generate(ctx, GenerateRequest{
		Model:             o.opts.Model,
		SystemInstruction: SystemInstruction(o.opts.TargetLanguage),
		Prompt:            UserPrompt,
		Upload:            upload,
		Temperature:       DefaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if err := fileutil.WriteFileAtomic(artifact, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return text, nil
}

// deleteUpload removes a staged file; failures are ignored.
func (o *Orchestrator) deleteUpload(ctx context.Context, backend Backend, name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := backend.Delete(ctx, name); err != nil {
		o.logger.Debug("upload delete failed", logging.String("upload", name), logging.Error(err))
	}
}

// worker owns a backend handle that is rebuilt only when the region changes.
type worker struct {
	factory BackendFactory
	backend Backend
	region  string
}

func (w *worker) backendFor(ctx context.Context, region string) (Backend, error) {
	if w.backend != nil && w.region == region {
		return w.backend, nil
	}
	backend, err := w.factory.Backend(ctx, region)
	if err != nil {
		return nil, err
	}
	w.backend = backend
	w.region = region
	return backend, nil
}

type tally struct {
	mu        sync.Mutex
	total     int
	processed int
	succeeded int
	skipped   int
	failed    int
	outcomes  []Outcome
	sampler   *logging.ProgressSampler
}

func (t *tally) add(outcome Outcome) (done, total int, sample bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	switch outcome.Status {
	case StatusSkipped:
		t.skipped++
		t.succeeded++
	case StatusSucceeded:
		t.succeeded++
	default:
		t.failed++
	}
	t.outcomes = append(t.outcomes, outcome)
	return t.processed, t.total, t.sampler.ShouldLog(t.processed, t.total, "transcribe")
}

func (t *tally) summary(elapsed time.Duration) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	outcomes := append([]Outcome(nil), t.outcomes...)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Chunk < outcomes[j].Chunk })
	return Summary{
		Total:     t.total,
		Processed: t.processed,
		Succeeded: t.succeeded,
		Skipped:   t.skipped,
		Failed:    t.failed,
		Elapsed:   elapsed,
		Outcomes:  outcomes,
	}
}
