package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (pass --overwrite to replace it)", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check %s: %w", target, err)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			p.line("Config", statusOK, "Wrote sample configuration to %s", target)
			p.detail("set gemini.api_key or export GEMINI_API_KEY")
			p.detail("for Vertex AI set gemini.use_vertex and gemini.project_id instead")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination (default ~/.config/loom/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	if target := strings.TrimSpace(flagValue); target != "" {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", target, err)
		}
		return expanded, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report the effective settings",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			if exists {
				p.line("Config path", statusOK, "%s", resolved)
			} else {
				p.line("Config path", statusWarn, "%s (not found, defaults used)", resolved)
			}
			if err := cfg.RequireCredentials(); err != nil {
				p.line("Credentials", statusWarn, "%v", err)
			} else if cfg.Gemini.UseVertex {
				p.line("Credentials", statusOK, "Vertex AI project %s", cfg.Gemini.ProjectID)
			} else {
				p.line("Credentials", statusOK, "API key configured")
			}
			p.line("Model", statusInfo, "%s", cfg.Gemini.Model)
			p.line("Workers", statusInfo, "%d (retries %d)", cfg.Transcription.MaxWorkers, cfg.Transcription.MaxRetries)
			p.line("State dir", statusInfo, "%s", cfg.Paths.StateDir)
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
			return nil
		},
	}
}
