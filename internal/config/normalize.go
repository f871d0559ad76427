package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGemini()
	c.normalizeTranscription()
	c.normalizeSubtitles()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return fmt.Errorf("paths.output_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.Gemini.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.Gemini.ProjectID = strings.TrimSpace(c.Gemini.ProjectID)
	if c.Gemini.ProjectID == "" {
		if value, ok := os.LookupEnv("GOOGLE_CLOUD_PROJECT"); ok {
			c.Gemini.ProjectID = strings.TrimSpace(value)
		}
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultModel
	}
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)

	regions := make([]string, 0, len(c.Gemini.Regions))
	seen := make(map[string]struct{}, len(c.Gemini.Regions))
	for _, region := range c.Gemini.Regions {
		region = strings.ToLower(strings.TrimSpace(region))
		if region == "" {
			continue
		}
		if _, ok := seen[region]; ok {
			continue
		}
		seen[region] = struct{}{}
		regions = append(regions, region)
	}
	if len(regions) == 0 {
		regions = append(regions, DefaultRegions...)
	}
	c.Gemini.Regions = regions

	if c.Gemini.PollIntervalSeconds <= 0 {
		c.Gemini.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Gemini.RequestTimeoutSeconds <= 0 {
		c.Gemini.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.TargetLanguage = strings.TrimSpace(c.Transcription.TargetLanguage)
	if c.Transcription.TargetLanguage == "" {
		c.Transcription.TargetLanguage = defaultTargetLanguage
	}
	if c.Transcription.MaxWorkers == 0 {
		c.Transcription.MaxWorkers = defaultMaxWorkers
	}
	if c.Transcription.MaxRetries == 0 {
		c.Transcription.MaxRetries = defaultMaxRetries
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Content = strings.ToLower(strings.TrimSpace(c.Subtitles.Content))
	if c.Subtitles.Content == "" {
		c.Subtitles.Content = defaultContent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
