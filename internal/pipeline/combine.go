package pipeline

import (
	"context"
	"errors"

	"loom/internal/chunking"
	"loom/internal/correction"
	"loom/internal/cues"
	"loom/internal/services"
	"loom/internal/subtitles"
)

// CombineRequest describes a synthesis pass over existing transcripts.
type CombineRequest struct {
	Chunks           []chunking.Chunk
	TranscriptsDir   string
	OutputPath       string
	Mode             cues.Mode
	FirstChunkOffset float64
	Strict           bool
	Watch            bool
}

// Combine synthesizes the SRT, pausing for operator correction on parse
// errors. The boolean result reports an operator stop.
func (r *Runner) Combine(ctx context.Context, req CombineRequest) (subtitles.Output, bool, error) {
	synth := subtitles.NewSynthesizer(r.prober, r.logger)
	loop := &correction.Loop{
		Commands: r.commands,
		Notify:   r.notify,
		Watch:    req.Watch,
		Logger:   r.logger,
	}
	out, err := loop.Run(ctx, func(ctx context.Context) (subtitles.Output, error) {
		return synth.Synthesize(ctx, subtitles.Input{
			Chunks:           req.Chunks,
			TranscriptDir:    req.TranscriptsDir,
			Mode:             req.Mode,
			FirstChunkOffset: req.FirstChunkOffset,
			Strict:           req.Strict,
			OutputPath:       req.OutputPath,
		})
	})
	if err == nil {
		return out, false, nil
	}
	if ctx.Err() != nil {
		return subtitles.Output{}, false, ctx.Err()
	}
	var perr *subtitles.ParseError
	switch {
	case errors.Is(err, correction.ErrStopped):
		return subtitles.Output{}, true, nil
	case errors.As(err, &perr):
		return subtitles.Output{}, false, services.Wrap(services.ErrValidation, "combine", "synthesize", "transcripts need correction", err)
	case errors.Is(err, subtitles.ErrNoEntries), errors.Is(err, chunking.ErrNoChunks):
		return subtitles.Output{}, false, services.Wrap(services.ErrValidation, "combine", "synthesize", "", err)
	default:
		return subtitles.Output{}, false, services.Wrap(services.ErrTransient, "combine", "synthesize", "", err)
	}
}
