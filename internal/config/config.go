package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Gemini contains configuration for the remote transcription service.
type Gemini struct {
	APIKey                string   `toml:"api_key"`
	ProjectID             string   `toml:"project_id"`
	UseVertex             bool     `toml:"use_vertex"`
	MultiRegion           bool     `toml:"multi_region"`
	Regions               []string `toml:"regions"`
	Model                 string   `toml:"model"`
	BaseURL               string   `toml:"base_url"`
	PollIntervalSeconds   int      `toml:"poll_interval_seconds"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
}

// Transcription contains configuration for the parallel transcription stage.
type Transcription struct {
	MaxWorkers          int    `toml:"max_workers"`
	MaxRetries          int    `toml:"max_retries"`
	InitialDelaySeconds int    `toml:"initial_delay_seconds"`
	TargetLanguage      string `toml:"target_language"`
	SkipExisting        bool   `toml:"skip_existing"`
	RequestsPerMinute   int    `toml:"requests_per_minute"`
}

// Splitting contains configuration for silence-aware chunking.
type Splitting struct {
	MaxChunkSeconds    int     `toml:"max_chunk_seconds"`
	MinSilenceMS       int     `toml:"min_silence_ms"`
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
}

// Subtitles contains configuration for SRT synthesis.
type Subtitles struct {
	Content          string  `toml:"content"`
	FirstChunkOffset float64 `toml:"first_chunk_offset"`
	Strict           bool    `toml:"strict"`
}

// Workflow contains end-to-end run behaviour toggles.
type Workflow struct {
	Cleanup          bool `toml:"cleanup"`
	VerifyDurations  bool `toml:"verify_durations"`
	WatchCorrections bool `toml:"watch_corrections"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for loom.
//
// Configuration sections by subsystem:
//   - Paths: default output, log, and state directories
//   - Gemini: remote transcription credentials, model, and region failover
//   - Transcription: worker pool, retry budget, and resume behaviour
//   - Splitting: silence detection and chunk length limits
//   - Subtitles: section selection and timeline offset
//   - Workflow: cleanup, verification, and correction watching
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Gemini        Gemini        `toml:"gemini"`
	Transcription Transcription `toml:"transcription"`
	Splitting     Splitting     `toml:"splitting"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The output
// directory is created per run by the pipeline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the location of the run history database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// FFmpegBinary returns the ffmpeg executable name used for splitting and conversion.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "loom")
	}
	return "~/.local/state/loom"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
