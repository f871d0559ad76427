package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"loom/internal/chunking"
	"loom/internal/correction"
	"loom/internal/ledger"
	"loom/internal/logging"
	"loom/internal/media"
	"loom/internal/media/audio"
	"loom/internal/services"
	"loom/internal/subtitles"
	"loom/internal/transcribe"
)

// History records run lifecycle and per-chunk outcomes.
type History interface {
	transcribe.Recorder
	BeginRun(ctx context.Context, id, input, outputDir string) error
	FinishRun(ctx context.Context, id string, fin ledger.Finish) error
}

// Runner wires the pipeline stages together.
type Runner struct {
	ffmpeg         string
	ffprobe        string
	exec           media.CommandRunner
	prober         chunking.DurationProber
	backends       transcribe.BackendFactory
	history        History
	commands       <-chan correction.Command
	notify         func([]subtitles.ParseErrorRecord)
	transcribeOpts []transcribe.Option
	logger         *slog.Logger
	newID          func() string
	now            func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used by every stage.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(r *Runner) {
		if strings.TrimSpace(ffmpeg) != "" {
			r.ffmpeg = ffmpeg
		}
		if strings.TrimSpace(ffprobe) != "" {
			r.ffprobe = ffprobe
		}
	}
}

// WithCommandRunner replaces process execution for ffmpeg and ffprobe.
func WithCommandRunner(run media.CommandRunner) Option {
	return func(r *Runner) {
		r.exec = run
	}
}

// WithProber replaces the duration prober.
func WithProber(prober chunking.DurationProber) Option {
	return func(r *Runner) {
		r.prober = prober
	}
}

// WithHistory records run history in h.
func WithHistory(h History) Option {
	return func(r *Runner) {
		r.history = h
	}
}

// WithCorrection routes operator decisions and problem reports for the
// correction loop.
func WithCorrection(commands <-chan correction.Command, notify func([]subtitles.ParseErrorRecord)) Option {
	return func(r *Runner) {
		r.commands = commands
		r.notify = notify
	}
}

// WithTranscribeOptions passes extra options to each orchestrator.
func WithTranscribeOptions(opts ...transcribe.Option) Option {
	return func(r *Runner) {
		r.transcribeOpts = append(r.transcribeOpts, opts...)
	}
}

// WithIDGenerator replaces run id generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRunner constructs a pipeline around a transcription backend factory.
func NewRunner(backends transcribe.BackendFactory, opts ...Option) *Runner {
	r := &Runner{
		ffmpeg:   "ffmpeg",
		ffprobe:  "ffprobe",
		backends: backends,
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.prober == nil {
		prober := audio.NewProber(r.ffprobe, r.logger)
		prober.Runner = r.exec
		r.prober = prober
	}
	return r
}

// Run executes the whole pipeline for req. An operator stop during
// correction is reported through Result.Stopped with a nil error.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	started := r.now()
	input, err := validateInput(req.Input)
	if err != nil {
		return Result{}, err
	}
	outputDir, err := resolveOutputDir(input, req.OutputDir)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "setup", "create output dir", outputDir, err)
	}
	release, err := lockOutput(outputDir)
	if err != nil {
		return Result{}, err
	}
	defer release()

	runID := r.newID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.NewComponentLogger(logging.WithContext(ctx, r.logger), "pipeline")
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("input", input),
		logging.String("output_dir", outputDir),
	)

	history := r.begin(ctx, logger, runID, input, outputDir)
	result := Result{RunID: runID, OutputDir: outputDir}
	err = r.execute(ctx, req, input, history, &result)
	result.Elapsed = r.now().Sub(started)
	r.finish(ctx, logger, history, &result, err)
	return result, err
}

func (r *Runner) execute(ctx context.Context, req Request, input string, history History, result *Result) error {
	outputDir := result.OutputDir
	result.AudioPath = input
	converted := false
	if audio.IsVideo(input) {
		err := r.stage(ctx, "convert", func(ctx context.Context, logger *slog.Logger) error {
			converter := &audio.Converter{FFmpeg: r.ffmpeg, Runner: r.exec}
			path, err := converter.ExtractMP3(ctx, input, outputDir)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "convert", "extract audio", "could not extract an audio track", err)
			}
			logger.Info("audio extracted", logging.String("path", path))
			result.AudioPath = path
			converted = true
			return nil
		})
		if err != nil {
			return err
		}
	}

	userChunks := false
	err := r.stage(ctx, "split", func(ctx context.Context, logger *slog.Logger) error {
		if req.SkipSplit {
			if dir := strings.TrimSpace(req.ChunksDir); dir != "" && isDir(dir) {
				chunks, err := chunking.List(dir)
				if err != nil {
					return services.Wrap(services.ErrValidation, "split", "list chunks", dir, err)
				}
				logger.Info("reusing existing chunks",
					logging.String("dir", dir),
					logging.Int("count", len(chunks)),
				)
				result.ChunksDir = dir
				result.Chunks = chunks
				userChunks = true
				return nil
			}
			logging.WarnWithContext(logger, "chunk directory not found, splitting instead", "skip_split_unavailable",
				logging.String("dir", req.ChunksDir),
				logging.String(logging.FieldImpact, "the source is split again"),
			)
		}
		result.ChunksDir = filepath.Join(outputDir, ChunksDirName)
		chunks, err := r.Split(ctx, result.AudioPath, result.ChunksDir, req.Split)
		if err != nil {
			return err
		}
		result.Chunks = chunks
		return nil
	})
	if err != nil {
		return err
	}

	result.TranscriptsDir = filepath.Join(outputDir, TranscriptsDirName)
	err = r.stage(ctx, "transcribe", func(ctx context.Context, logger *slog.Logger) error {
		summary, err := r.transcribe(ctx, result.ChunksDir, result.TranscriptsDir, req.Transcribe, history)
		result.Transcription = summary
		return err
	})
	if err != nil {
		return err
	}

	srtPath := filepath.Join(outputDir, stem(input)+".srt")
	err = r.stage(ctx, "combine", func(ctx context.Context, logger *slog.Logger) error {
		out, stopped, err := r.Combine(ctx, CombineRequest{
			Chunks:           result.Chunks,
			TranscriptsDir:   result.TranscriptsDir,
			OutputPath:       srtPath,
			Mode:             req.Mode,
			FirstChunkOffset: req.FirstChunkOffset,
			Strict:           req.Strict,
			Watch:            req.Watch,
		})
		if err != nil {
			return err
		}
		result.Subtitles = out
		result.Stopped = stopped
		if !stopped {
			result.SRTPath = out.Path
		}
		return nil
	})
	if err != nil || result.Stopped {
		return err
	}

	if req.Verify {
		r.verify(ctx, result)
	}
	if req.Cleanup {
		r.cleanup(ctx, result, userChunks, converted)
	}
	return nil
}

// Transcribe runs the orchestrator over chunksDir outside a full run.
func (r *Runner) Transcribe(ctx context.Context, chunksDir, transcriptsDir string, opts transcribe.Options) (transcribe.Summary, error) {
	return r.transcribe(ctx, chunksDir, transcriptsDir, opts, r.history)
}

func (r *Runner) transcribe(ctx context.Context, chunksDir, transcriptsDir string, opts transcribe.Options, history History) (transcribe.Summary, error) {
	options := append([]transcribe.Option{transcribe.WithLogger(r.logger)}, r.transcribeOpts...)
	if history != nil {
		if _, ok := services.RunIDFromContext(ctx); ok {
			options = append(options, transcribe.WithRecorder(history))
		}
	}
	summary, err := transcribe.New(r.backends, opts, options...).Run(ctx, chunksDir, transcriptsDir)
	if err == nil {
		return summary, nil
	}
	switch {
	case ctx.Err() != nil:
		return summary, ctx.Err()
	case errors.Is(err, transcribe.ErrClientInit):
		return summary, services.Wrap(services.ErrConfiguration, "transcribe", "create client", "check the Gemini credentials", err)
	case errors.Is(err, transcribe.ErrNoAudioDir), errors.Is(err, transcribe.ErrNoChunks):
		return summary, services.Wrap(services.ErrNotFound, "transcribe", "list chunks", chunksDir, err)
	default:
		return summary, services.Wrap(services.ErrTransient, "transcribe", "run", "", err)
	}
}

func (r *Runner) begin(ctx context.Context, logger *slog.Logger, runID, input, outputDir string) History {
	if r.history == nil {
		return nil
	}
	if err := r.history.BeginRun(ctx, runID, input, outputDir); err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_begin_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded in loom history"),
		)
		return nil
	}
	return r.history
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, history History, result *Result, runErr error) {
	status := ledger.StatusCompleted
	switch {
	case runErr != nil:
		status = ledger.StatusFailed
	case result.Stopped:
		status = ledger.StatusStopped
	}

	attrs := []logging.Attr{
		logging.String("status", string(status)),
		logging.Duration("elapsed", result.Elapsed),
		logging.Int("chunks", len(result.Chunks)),
	}
	if runErr != nil {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			append(attrs,
				logging.Error(runErr),
				logging.String(logging.FieldErrorHint, services.ExitHint(runErr)),
			)...,
		)
	} else {
		attrs = append(attrs,
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("srt", result.SRTPath),
		)
		logger.Info("run finished", logging.Args(attrs...)...)
	}

	if history == nil {
		return
	}
	summary := result.Transcription
	err := history.FinishRun(context.WithoutCancel(ctx), result.RunID, ledger.Finish{
		Status:    status,
		Err:       runErr,
		Chunks:    len(result.Chunks),
		Succeeded: summary.NewlyProcessed(),
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		SRTPath:   result.SRTPath,
	})
	if err != nil {
		logger.Warn("failed to record run result", logging.Error(err))
	}
}

// stage runs fn with stage-scoped context and logging.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context, *slog.Logger) error) error {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.NewComponentLogger(logging.WithContext(stageCtx, r.logger), "pipeline")
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	began := r.now()
	if err := fn(stageCtx, logger); err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", r.now().Sub(began)),
	)
	return nil
}

func validateInput(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", services.Wrap(services.ErrConfiguration, "setup", "validate input", "an input file is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "setup", "resolve input", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "setup", "validate input", abs, err)
		}
		return "", services.Wrap(services.ErrConfiguration, "setup", "validate input", abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrValidation, "setup", "validate input", fmt.Sprintf("%s is not a regular file", abs), nil)
	}
	return abs, nil
}

func resolveOutputDir(input, requested string) (string, error) {
	dir := strings.TrimSpace(requested)
	if dir == "" {
		dir = filepath.Join(filepath.Dir(input), stem(input))
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "setup", "resolve output dir", dir, err)
	}
	return abs, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
