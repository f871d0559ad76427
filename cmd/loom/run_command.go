package main

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/deps"
	"loom/internal/pipeline"
	"loom/internal/preflight"
	"loom/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir string
		skipSplit bool
		chunksDir string
		cleanup   bool
		verify    bool
		split     splitFlags
		trans     transcribeFlags
		subs      subtitleFlags
	)

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Split, transcribe, and subtitle a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.workingConfig()
			if err != nil {
				return err
			}
			split.apply(cmd, cfg)
			trans.apply(cmd, cfg)
			subs.apply(cmd, cfg)
			if cmd.Flags().Changed("cleanup") {
				cfg.Workflow.Cleanup = cleanup
			}
			if cmd.Flags().Changed("verify") {
				cfg.Workflow.VerifyDurations = verify
			}
			if err := validateWorking(cfg, true); err != nil {
				return err
			}
			mode, err := contentMode(cfg)
			if err != nil {
				return err
			}
			if err := requireBinaries(cfg); err != nil {
				return err
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			history := ctx.openHistory(cfg, logger)
			defer closeQuietly(history)

			req := pipeline.Request{
				Input:            args[0],
				OutputDir:        resolveRunOutputDir(cfg, args[0], outputDir),
				SkipSplit:        skipSplit,
				ChunksDir:        chunksDir,
				Cleanup:          cfg.Workflow.Cleanup,
				Verify:           cfg.Workflow.VerifyDurations,
				Watch:            cfg.Workflow.WatchCorrections,
				Mode:             mode,
				FirstChunkOffset: cfg.Subtitles.FirstChunkOffset,
				Strict:           cfg.Subtitles.Strict,
				Split:            splitOptions(cfg),
				Transcribe:       transcribeOptions(cfg),
			}
			result, err := ctx.newRunner(cmd, cfg, logger, history).Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			printRunSummary(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for chunks, transcripts, and the SRT (default <input dir>/<input name>)")
	cmd.Flags().BoolVar(&skipSplit, "skip-split", false, "Reuse existing chunks from --audio-chunks-dir")
	cmd.Flags().StringVar(&chunksDir, "audio-chunks-dir", "", "Existing chunk directory used with --skip-split")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Remove intermediate chunks and transcripts after success")
	cmd.Flags().BoolVar(&verify, "verify", false, "Compare summed chunk durations with the source")
	split.register(cmd)
	trans.register(cmd)
	subs.register(cmd)
	return cmd
}

func resolveRunOutputDir(cfg *config.Config, input, flagValue string) string {
	if dir := strings.TrimSpace(flagValue); dir != "" {
		return dir
	}
	if base := strings.TrimSpace(cfg.Paths.OutputDir); base != "" {
		name := filepath.Base(input)
		return filepath.Join(base, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	return ""
}

func requireBinaries(cfg *config.Config) error {
	missing := deps.Missing(preflight.CheckSystemDeps(cfg))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
	}
	return services.Wrap(services.ErrExternalTool, "setup", "check dependencies", strings.Join(names, ", "), nil)
}

func printRunSummary(w io.Writer, result pipeline.Result) {
	p := newStatusPrinter(w)
	p.header("loom run " + result.RunID)

	summary := result.Transcription
	chunkKind := statusOK
	if summary.Failed > 0 {
		chunkKind = statusWarn
	}
	p.line("Chunks", chunkKind, "%d transcribed, %d reused, %d failed", summary.NewlyProcessed(), summary.Skipped, summary.Failed)

	if v := result.Verification; v != nil {
		if v.Consistent {
			p.line("Durations", statusOK, "sum %s s matches %s s", formatSeconds(v.Sum), formatSeconds(v.Original))
		} else {
			p.line("Durations", statusWarn, "chunks run %s s %s the source", formatSeconds(math.Abs(v.Diff)), v.Direction())
		}
	}

	if result.Stopped {
		p.line("Subtitles", statusWarn, "stopped before writing")
		p.detail("fix the transcripts in %s, then run loom combine", result.TranscriptsDir)
		return
	}
	p.line("Subtitles", statusOK, "%d entries written to %s", len(result.Subtitles.Entries), result.SRTPath)
	p.line("Elapsed", statusInfo, "%s", formatElapsed(result.Elapsed))
}
