package pipeline

import (
	"context"
	"os"

	"loom/internal/chunking"
	"loom/internal/logging"
	"loom/internal/services"
)

func (r *Runner) verify(ctx context.Context, result *Result) {
	logger := logging.NewComponentLogger(logging.WithContext(services.WithStage(ctx, "verify"), r.logger), "pipeline")
	v, err := chunking.Verify(ctx, r.prober, result.AudioPath, result.Chunks)
	if err != nil {
		logging.WarnWithContext(logger, "duration verification failed", "verify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "chunk coverage was not checked"),
		)
		return
	}
	result.Verification = &v
	attrs := []logging.Attr{
		logging.Float64("original", v.Original),
		logging.Float64("sum", v.Sum),
		logging.Float64("diff", v.Diff),
		logging.Int("probe_failures", v.Failed),
	}
	if v.Consistent {
		logger.Info("chunk durations match the source", logging.Args(attrs...)...)
		return
	}
	logging.WarnWithContext(logger, "chunk durations drift from the source", "duration_drift",
		append(attrs,
			logging.String("direction", v.Direction()),
			logging.String(logging.FieldImpact, "subtitles may drift in later chunks"),
		)...,
	)
}

// cleanup removes intermediate artifacts. Chunk directories supplied by the
// caller are left alone.
func (r *Runner) cleanup(ctx context.Context, result *Result, userChunks, converted bool) {
	logger := logging.NewComponentLogger(logging.WithContext(services.WithStage(ctx, "cleanup"), r.logger), "pipeline")
	var targets []string
	if !userChunks && result.ChunksDir != "" {
		targets = append(targets, result.ChunksDir)
	}
	if result.TranscriptsDir != "" {
		targets = append(targets, result.TranscriptsDir)
	}
	if converted && result.AudioPath != "" {
		targets = append(targets, result.AudioPath)
	}
	for _, target := range targets {
		if err := os.RemoveAll(target); err != nil {
			logger.Warn("cleanup failed",
				logging.String("path", target),
				logging.Error(err),
			)
			continue
		}
		logger.Debug("removed intermediate artifact", logging.String("path", target))
	}
}
