package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/ledger"
	"loom/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs, or one run's chunk results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.workingConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.LedgerPath()); os.IsNotExist(err) {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "history", "open ledger", cfg.LedgerPath(), err)
			}
			defer store.Close()

			if len(args) == 1 {
				return printRunDetail(cmd, store, args[0])
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					string(run.Status),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					formatElapsed(run.Duration(now)),
					fmt.Sprintf("%d/%d", run.Succeeded+run.Skipped, run.Chunks),
					run.Input,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{left("Run"), left("Status"), left("Started"), right("Elapsed"), right("Chunks"), left("Input")},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func printRunDetail(cmd *cobra.Command, store *ledger.Store, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return services.Wrap(services.ErrNotFound, "history", "get run", id, nil)
	}
	results, err := store.ChunkResults(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := newStatusPrinter(out)
	p.header("Run " + run.ID)
	p.line("Status", runStatusKind(run.Status), "%s", run.Status)
	p.line("Input", statusInfo, "%s", run.Input)
	p.line("Output", statusInfo, "%s", run.OutputDir)
	p.line("Elapsed", statusInfo, "%s", formatElapsed(run.Duration(time.Now())))
	p.line("Chunks", statusInfo, "%d total, %d transcribed, %d reused, %d failed", run.Chunks, run.Succeeded, run.Skipped, run.Failed)
	if run.SRTPath != "" {
		p.line("Subtitles", statusOK, "%s", run.SRTPath)
	}
	if run.ErrorMessage != "" {
		p.line("Error", statusError, "%s", run.ErrorMessage)
	}
	if len(results) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		region := r.Region
		if region == "" {
			region = "-"
		}
		rows = append(rows, []string{r.Chunk, r.Status, strconv.Itoa(r.Attempts), region, r.ErrorMessage})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]column{left("Chunk"), left("Status"), right("Attempts"), left("Region"), wrapped("Error", errorColumnWidth)},
		rows,
	))
	return nil
}

func runStatusKind(status ledger.Status) statusKind {
	switch status {
	case ledger.StatusCompleted:
		return statusOK
	case ledger.StatusStopped:
		return statusWarn
	case ledger.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}
