// Package media holds the external-command plumbing shared by the ffmpeg and
// ffprobe callers. Subpackages wrap specific tools.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes name with args and returns combined stdout and stderr.
// Tests substitute it to avoid spawning real binaries.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Run executes a command and formats failures with the trimmed tool output.
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", name, ctxErr)
		}
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// Resolve returns runner, or Run when runner is nil.
func Resolve(runner CommandRunner) CommandRunner {
	if runner == nil {
		return Run
	}
	return runner
}
