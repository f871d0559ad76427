package main

import (
	"time"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/cues"
	"loom/internal/pipeline"
	"loom/internal/services"
	"loom/internal/services/gemini"
	"loom/internal/transcribe"
)

type splitFlags struct {
	maxLength        int
	silenceLength    int
	silenceThreshold float64
}

func (f *splitFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.maxLength, "max-length", 0, "Maximum chunk length in seconds")
	fs.IntVar(&f.silenceLength, "silence-length", 0, "Minimum silence length in milliseconds")
	fs.Float64Var(&f.silenceThreshold, "silence-threshold", 0, "Silence threshold in dB")
}

func (f *splitFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-length") {
		cfg.Splitting.MaxChunkSeconds = f.maxLength
	}
	if flags.Changed("silence-length") {
		cfg.Splitting.MinSilenceMS = f.silenceLength
	}
	if flags.Changed("silence-threshold") {
		cfg.Splitting.SilenceThresholdDB = f.silenceThreshold
	}
}

type transcribeFlags struct {
	model          string
	targetLanguage string
	maxWorkers     int
	noSkipExisting bool
	vertex         bool
	project        string
	multiRegion    bool
	apiKey         string
}

func (f *transcribeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.model, "model", "", "Gemini model name")
	fs.StringVar(&f.targetLanguage, "target-language", "", "Language of the translation section")
	fs.IntVar(&f.maxWorkers, "max-workers", 0, "Concurrent transcription workers")
	fs.BoolVar(&f.noSkipExisting, "no-skip-existing", false, "Re-transcribe chunks that already have a valid transcript")
	fs.BoolVar(&f.vertex, "vertex", false, "Use Vertex AI instead of the Gemini API")
	fs.StringVar(&f.project, "project", "", "Google Cloud project for Vertex AI")
	fs.BoolVar(&f.multiRegion, "multi-region", false, "Rotate Vertex AI regions on retry")
	fs.StringVar(&f.apiKey, "api-key", "", "Gemini API key")
}

func (f *transcribeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Gemini.Model = f.model
	}
	if flags.Changed("target-language") {
		cfg.Transcription.TargetLanguage = f.targetLanguage
	}
	if flags.Changed("max-workers") {
		cfg.Transcription.MaxWorkers = f.maxWorkers
	}
	if f.noSkipExisting {
		cfg.Transcription.SkipExisting = false
	}
	if flags.Changed("vertex") {
		cfg.Gemini.UseVertex = f.vertex
	}
	if flags.Changed("project") {
		cfg.Gemini.ProjectID = f.project
	}
	if flags.Changed("multi-region") {
		cfg.Gemini.MultiRegion = f.multiRegion
		if f.multiRegion && !flags.Changed("vertex") {
			cfg.Gemini.UseVertex = true
		}
	}
	if flags.Changed("api-key") {
		cfg.Gemini.APIKey = f.apiKey
	}
}

type subtitleFlags struct {
	content          string
	firstChunkOffset float64
	strict           bool
	watch            bool
}

func (f *subtitleFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.content, "content", "", "Subtitle source section: transcript, translation, or both")
	fs.Float64Var(&f.firstChunkOffset, "first-chunk-offset", 0, "Seconds added to every subtitle")
	fs.BoolVar(&f.strict, "strict", false, "Pause on malformed or out-of-range timestamps")
	fs.BoolVar(&f.watch, "watch", false, "Retry automatically when a flagged transcript is saved")
}

func (f *subtitleFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("content") {
		cfg.Subtitles.Content = f.content
	}
	if flags.Changed("first-chunk-offset") {
		cfg.Subtitles.FirstChunkOffset = f.firstChunkOffset
	}
	if flags.Changed("strict") {
		cfg.Subtitles.Strict = f.strict
	}
	if flags.Changed("watch") {
		cfg.Workflow.WatchCorrections = f.watch
	}
}

func validateWorking(cfg *config.Config, needCredentials bool) error {
	if err := cfg.Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
	}
	if needCredentials {
		if err := cfg.RequireCredentials(); err != nil {
			return services.Wrap(services.ErrConfiguration, "config", "credentials", "", err)
		}
	}
	return nil
}

func splitOptions(cfg *config.Config) pipeline.SplitOptions {
	return pipeline.SplitOptions{
		MaxChunkSeconds: float64(cfg.Splitting.MaxChunkSeconds),
		MinSilence:      time.Duration(cfg.Splitting.MinSilenceMS) * time.Millisecond,
		ThresholdDB:     cfg.Splitting.SilenceThresholdDB,
	}
}

func transcribeOptions(cfg *config.Config) transcribe.Options {
	return transcribe.Options{
		Model:             cfg.Gemini.Model,
		TargetLanguage:    cfg.Transcription.TargetLanguage,
		MaxWorkers:        cfg.Transcription.MaxWorkers,
		MaxRetries:        cfg.Transcription.MaxRetries,
		InitialDelay:      time.Duration(cfg.Transcription.InitialDelaySeconds) * time.Second,
		PollInterval:      time.Duration(cfg.Gemini.PollIntervalSeconds) * time.Second,
		SkipExisting:      cfg.Transcription.SkipExisting,
		RequestsPerMinute: cfg.Transcription.RequestsPerMinute,
		MultiRegion:       cfg.Gemini.MultiRegion,
		Regions:           cfg.Gemini.Regions,
	}
}

func geminiConfig(cfg *config.Config) gemini.Config {
	region := ""
	if len(cfg.Gemini.Regions) > 0 {
		region = cfg.Gemini.Regions[0]
	}
	return gemini.Config{
		APIKey:        cfg.Gemini.APIKey,
		Project:       cfg.Gemini.ProjectID,
		UseVertex:     cfg.Gemini.UseVertex,
		Model:         cfg.Gemini.Model,
		BaseURL:       cfg.Gemini.BaseURL,
		DefaultRegion: region,
		Timeout:       time.Duration(cfg.Gemini.RequestTimeoutSeconds) * time.Second,
	}
}

func contentMode(cfg *config.Config) (cues.Mode, error) {
	mode, err := cues.ParseMode(cfg.Subtitles.Content)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "config", "content", "", err)
	}
	return mode, nil
}
