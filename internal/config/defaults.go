package config

const (
	defaultLogDir                 = "~/.local/share/loom/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultModel                  = "gemini-3-pro-preview"
	defaultPollIntervalSeconds    = 2
	defaultRequestTimeoutSeconds  = 600
	defaultMaxWorkers             = 2
	defaultMaxRetries             = 5
	defaultInitialDelaySeconds    = 3
	defaultTargetLanguage         = "Simplified Chinese"
	defaultMaxChunkSeconds        = 300
	defaultMinSilenceMS           = 500
	defaultSilenceThresholdDB     = -40
	defaultContent                = "both"
	defaultSubtitlesStrict        = false
	defaultTranscriptionSkipExist = true
)

// DefaultRegions lists the Vertex AI locations rotated through in multi-region mode,
// ordered by typical capacity.
var DefaultRegions = []string{
	"us-central1",
	"us-east4",
	"us-west1",
	"europe-west1",
	"europe-west4",
	"asia-northeast1",
	"asia-southeast1",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir(),
		},
		Gemini: Gemini{
			Model:                 defaultModel,
			Regions:               append([]string(nil), DefaultRegions...),
			PollIntervalSeconds:   defaultPollIntervalSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Transcription: Transcription{
			MaxWorkers:          defaultMaxWorkers,
			MaxRetries:          defaultMaxRetries,
			InitialDelaySeconds: defaultInitialDelaySeconds,
			TargetLanguage:      defaultTargetLanguage,
			SkipExisting:        defaultTranscriptionSkipExist,
		},
		Splitting: Splitting{
			MaxChunkSeconds:    defaultMaxChunkSeconds,
			MinSilenceMS:       defaultMinSilenceMS,
			SilenceThresholdDB: defaultSilenceThresholdDB,
		},
		Subtitles: Subtitles{
			Content: defaultContent,
			Strict:  defaultSubtitlesStrict,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
