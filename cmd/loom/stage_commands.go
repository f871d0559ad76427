package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/chunking"
	"loom/internal/pipeline"
	"loom/internal/services"
	"loom/internal/subtitles"
	"loom/internal/transcribe"
)

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir string
		split     splitFlags
	)

	cmd := &cobra.Command{
		Use:   "split <input>",
		Short: "Cut a recording into chunks at silences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.workingConfig()
			if err != nil {
				return err
			}
			split.apply(cmd, cfg)
			if err := validateWorking(cfg, false); err != nil {
				return err
			}
			if err := requireBinaries(cfg); err != nil {
				return err
			}
			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outputDir)
			if target == "" {
				stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
				target = filepath.Join(filepath.Dir(input), stem, pipeline.ChunksDirName)
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			chunks, err := ctx.newRunner(cmd, cfg, logger, nil).Split(cmd.Context(), input, target, splitOptions(cfg))
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(chunks))
			for _, c := range chunks {
				rows = append(rows, []string{
					strconv.Itoa(c.Index),
					c.Name(),
					formatSeconds(c.Start),
					formatSeconds(c.End),
					formatSeconds(c.Duration()),
				})
			}
			out := cmd.OutOrStdout()
			total := 0.0
			for _, c := range chunks {
				total += c.Duration()
			}
			fmt.Fprintln(out, renderTable(
				[]column{right("#"), left("Chunk"), right("Start"), right("End"), right("Length")},
				rows,
				"", "", "", "", formatSeconds(total),
			))
			fmt.Fprintf(out, "Wrote %d chunks to %s\n", len(chunks), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Chunk directory (default <input dir>/<input name>/audio_chunks)")
	split.register(cmd)
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir string
		trans     transcribeFlags
	)

	cmd := &cobra.Command{
		Use:   "transcribe <chunks-dir>",
		Short: "Transcribe every chunk in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.workingConfig()
			if err != nil {
				return err
			}
			trans.apply(cmd, cfg)
			if err := validateWorking(cfg, true); err != nil {
				return err
			}
			chunksDir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outputDir)
			if target == "" {
				target = filepath.Join(filepath.Dir(chunksDir), pipeline.TranscriptsDirName)
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			summary, err := ctx.newRunner(cmd, cfg, logger, nil).Transcribe(cmd.Context(), chunksDir, target, transcribeOptions(cfg))
			if err != nil {
				return err
			}
			printOutcomes(cmd, summary)
			fmt.Fprintf(cmd.OutOrStdout(), "Transcripts in %s\n", target)
			if summary.Failed > 0 {
				return services.Wrap(services.ErrTransient, "transcribe", "run",
					fmt.Sprintf("%d of %d chunks failed", summary.Failed, summary.Total), nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Transcript directory (default next to the chunk directory)")
	trans.register(cmd)
	return cmd
}

func printOutcomes(cmd *cobra.Command, summary transcribe.Summary) {
	rows := make([][]string, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		}
		region := o.Region
		if region == "" {
			region = "-"
		}
		rows = append(rows, []string{o.Chunk, string(o.Status), strconv.Itoa(o.Attempts), region, detail})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]column{left("Chunk"), left("Status"), right("Attempts"), left("Region"), wrapped("Error", errorColumnWidth)},
		rows,
	))
	fmt.Fprintf(out, "%d chunks: %d transcribed, %d reused, %d failed in %s\n",
		summary.Total, summary.NewlyProcessed(), summary.Skipped, summary.Failed, formatElapsed(summary.Elapsed))
}

func newCombineCommand(ctx *commandContext) *cobra.Command {
	var subs subtitleFlags

	cmd := &cobra.Command{
		Use:   "combine <chunks-dir> <transcripts-dir> <output.srt>",
		Short: "Build the SRT from existing transcripts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.workingConfig()
			if err != nil {
				return err
			}
			subs.apply(cmd, cfg)
			if err := validateWorking(cfg, false); err != nil {
				return err
			}
			mode, err := contentMode(cfg)
			if err != nil {
				return err
			}
			chunks, err := chunking.List(args[0])
			if err != nil {
				return services.Wrap(services.ErrNotFound, "combine", "list chunks", args[0], err)
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			out, stopped, err := ctx.newRunner(cmd, cfg, logger, nil).Combine(cmd.Context(), pipeline.CombineRequest{
				Chunks:           chunks,
				TranscriptsDir:   args[1],
				OutputPath:       args[2],
				Mode:             mode,
				FirstChunkOffset: cfg.Subtitles.FirstChunkOffset,
				Strict:           cfg.Subtitles.Strict,
				Watch:            cfg.Workflow.WatchCorrections,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if stopped {
				fmt.Fprintln(w, "Stopped; no subtitles were written.")
				return nil
			}
			fmt.Fprintf(w, "Wrote %d subtitles from %d chunks to %s\n", len(out.Entries), out.Chunks, out.Path)
			return nil
		},
	}

	subs.register(cmd)
	return cmd
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var srtPath string

	cmd := &cobra.Command{
		Use:   "verify <original> <chunks-dir>",
		Short: "Compare chunk durations with the original and optionally check an SRT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.workingConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			chunks, err := chunking.List(args[1])
			if err != nil {
				return services.Wrap(services.ErrNotFound, "verify", "list chunks", args[1], err)
			}
			v, err := chunking.Verify(cmd.Context(), ctx.prober(cfg, logger), args[0], chunks)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "verify", "probe durations", "", err)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(v.Chunks))
			for _, c := range v.Chunks {
				length := formatSeconds(c.Seconds)
				if c.ProbeErr != nil {
					length = "error: " + c.ProbeErr.Error()
				}
				rows = append(rows, []string{c.Chunk.Name(), length})
			}
			fmt.Fprintln(out, renderTable([]column{left("Chunk"), right("Length")}, rows, "Sum", formatSeconds(v.Sum)))

			p := newStatusPrinter(out)
			kind := statusOK
			if !v.Consistent {
				kind = statusWarn
			}
			p.line("Original", statusInfo, "%s s", formatSeconds(v.Original))
			p.line("Chunks", kind, "%s s (diff %+.3f s, consistent: %s)", formatSeconds(v.Sum), v.Diff, yesNo(v.Consistent))
			if v.Failed > 0 {
				p.line("Probe", statusWarn, "%d chunk(s) could not be measured", v.Failed)
			}

			if strings.TrimSpace(srtPath) == "" {
				return nil
			}
			report, err := subtitles.ValidateSRT(srtPath)
			if err != nil {
				return services.Wrap(services.ErrNotFound, "verify", "read srt", srtPath, err)
			}
			if report.Valid() {
				p.line("SRT", statusOK, "%d entries, ends at %s", report.Entries, subtitles.FormatTimestamp(report.End))
				return nil
			}
			p.line("SRT", statusError, "%d issue(s)", len(report.Issues))
			for _, issue := range report.Issues {
				p.detail("%s", issue)
			}
			return services.Wrap(services.ErrValidation, "verify", "validate srt", srtPath, errors.New("srt has structural issues"))
		},
	}

	cmd.Flags().StringVar(&srtPath, "srt", "", "Also validate this SRT file")
	return cmd
}
