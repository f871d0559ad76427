package pipeline

import (
	"context"

	"loom/internal/chunking"
	"loom/internal/logging"
	"loom/internal/segment"
	"loom/internal/services"
	"loom/internal/silence"
)

// Split plans cut points for source and exports the chunks into outDir.
// Silence detection failures degrade to uniform cuts.
func (r *Runner) Split(ctx context.Context, source, outDir string, opts SplitOptions) ([]chunking.Chunk, error) {
	opts = opts.withDefaults()
	logger := logging.NewComponentLogger(logging.WithContext(services.WithStage(ctx, "split"), r.logger), "pipeline")

	total, err := r.prober.Duration(ctx, source)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "split", "probe duration", "could not read the source duration", err)
	}

	detector := &silence.Detector{FFmpeg: r.ffmpeg, Runner: r.exec}
	silences, err := detector.Detect(ctx, source, opts.ThresholdDB, opts.MinSilence)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.WarnWithContext(logger, "silence detection failed", "silence_detect_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "chunks are cut at fixed intervals"),
			logging.String(logging.FieldErrorHint, "verify ffmpeg can decode the source"),
		)
		silences = nil
	}

	cuts := segment.Plan(total, segment.Normalize(silences), opts.MaxChunkSeconds)
	logger.Info("segments planned",
		logging.Float64("duration", total),
		logging.Int("silences", len(silences)),
		logging.Int("segments", len(cuts)+1),
	)

	exporter := &chunking.Exporter{FFmpeg: r.ffmpeg, Runner: r.exec, Logger: r.logger}
	chunks, err := exporter.Export(ctx, source, cuts, total, outDir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "split", "export chunks", "no chunk could be exported", err)
	}
	return chunks, nil
}
