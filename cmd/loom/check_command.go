package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/preflight"
	"loom/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify binaries, directories, and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.workingConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			if !offline {
				checker, _ := ctx.backends(cfg).(preflight.HealthChecker)
				results = append(results, preflight.CheckGemini(cmd.Context(), checker))
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "ok"
				if !r.Passed {
					state = "FAIL"
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{left("Check"), left("State"), wrapped("Detail", 72)}, rows))

			failed := preflight.Failed(results)
			if len(failed) == 0 {
				fmt.Fprintln(out, "All checks passed")
				return nil
			}
			return services.Wrap(services.ErrConfiguration, "check", "preflight",
				fmt.Sprintf("%d check(s) failed", len(failed)), errors.New(failed[0].Name+": "+failed[0].Detail))
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the remote API check")
	return cmd
}
