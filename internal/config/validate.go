package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Credentials are not checked
// here so that commands which never contact the remote service (split,
// combine, verify) run without them; see RequireCredentials.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSplitting(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireCredentials reports whether the configured remote service can be reached
// with the supplied credentials.
func (c *Config) RequireCredentials() error {
	if c.Gemini.UseVertex {
		if c.Gemini.ProjectID == "" {
			return errors.New("gemini.project_id is required when gemini.use_vertex is enabled (or set GOOGLE_CLOUD_PROJECT)")
		}
		return nil
	}
	if c.Gemini.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/loom/config.toml"
		}
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'loom config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.MaxWorkers < 1 {
		return errors.New("transcription.max_workers must be at least 1")
	}
	if c.Transcription.MaxRetries < 1 {
		return errors.New("transcription.max_retries must be at least 1")
	}
	if c.Transcription.InitialDelaySeconds < 0 {
		return errors.New("transcription.initial_delay_seconds must be non-negative")
	}
	if c.Transcription.RequestsPerMinute < 0 {
		return errors.New("transcription.requests_per_minute must be non-negative")
	}
	if c.Gemini.MultiRegion && !c.Gemini.UseVertex {
		return errors.New("gemini.multi_region requires gemini.use_vertex")
	}
	return nil
}

func (c *Config) validateSplitting() error {
	if c.Splitting.MaxChunkSeconds <= 0 {
		return errors.New("splitting.max_chunk_seconds must be positive")
	}
	if c.Splitting.MinSilenceMS <= 0 {
		return errors.New("splitting.min_silence_ms must be positive")
	}
	if c.Splitting.SilenceThresholdDB > 0 {
		return errors.New("splitting.silence_threshold_db must be zero or negative")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	switch c.Subtitles.Content {
	case "transcript", "translation", "both":
		return nil
	default:
		return fmt.Errorf("subtitles.content must be one of transcript, translation, both (got %q)", c.Subtitles.Content)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
