package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"loom/internal/chunking"
	"loom/internal/config"
	"loom/internal/correction"
	"loom/internal/deps"
	"loom/internal/ledger"
	"loom/internal/logging"
	"loom/internal/media/audio"
	"loom/internal/pipeline"
	"loom/internal/services"
	"loom/internal/services/gemini"
	"loom/internal/subtitles"
	"loom/internal/transcribe"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// Test hooks.
	backends         func(*config.Config) transcribe.BackendFactory
	prober           func(*config.Config, *slog.Logger) chunking.DurationProber
	runnerOptions    []pipeline.Option
	forceInteractive bool
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		backends: func(cfg *config.Config) transcribe.BackendFactory {
			return gemini.NewFactory(geminiConfig(cfg))
		},
		prober: func(cfg *config.Config, logger *slog.Logger) chunking.DurationProber {
			ffmpeg := cfg.FFmpegBinary()
			return audio.NewProber(deps.ResolveFFprobe(ffmpeg, cfg.FFprobeBinary()), logger)
		},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "create directories", "", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// workingConfig returns a copy of the loaded config that flags may modify.
func (c *commandContext) workingConfig() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	clone := *cfg
	clone.Gemini.Regions = append([]string(nil), cfg.Gemini.Regions...)
	return &clone, nil
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "create logger", "", err)
	}
	return logger, nil
}

// openHistory opens the ledger. Failures are logged and history is skipped.
func (c *commandContext) openHistory(cfg *config.Config, logger *slog.Logger) *ledger.Store {
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "ledger_open_failed",
			logging.String("path", cfg.LedgerPath()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded in loom history"),
			logging.String(logging.FieldErrorHint, "delete the ledger file if the schema is outdated"),
		)
		return nil
	}
	return store
}

func (c *commandContext) interactive(cmd *cobra.Command) bool {
	if c.forceInteractive {
		return true
	}
	file, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newRunner wires a pipeline runner for cmd. When stdin is a terminal, parse
// errors are reported on stdout and the operator is prompted to retry or stop.
func (c *commandContext) newRunner(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, history *ledger.Store) *pipeline.Runner {
	ffmpeg := cfg.FFmpegBinary()
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithBinaries(ffmpeg, deps.ResolveFFprobe(ffmpeg, cfg.FFprobeBinary())),
	}
	if history != nil {
		opts = append(opts, pipeline.WithHistory(history))
	}
	if c.interactive(cmd) {
		out := cmd.OutOrStdout()
		commands := correction.PromptCommands(cmd.Context(), cmd.InOrStdin(), out)
		opts = append(opts, pipeline.WithCorrection(commands, func(records []subtitles.ParseErrorRecord) {
			correction.PrintRecords(out, records)
		}))
	}
	opts = append(opts, c.runnerOptions...)
	return pipeline.NewRunner(c.backends(cfg), opts...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
