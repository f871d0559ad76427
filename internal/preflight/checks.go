package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"loom/internal/config"
	"loom/internal/deps"
)

const healthCheckTimeout = 30 * time.Second

// HealthChecker is implemented by remote clients that can verify access.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GeminiCheckName labels the remote reachability result.
const GeminiCheckName = "Gemini endpoint"

// CheckGemini verifies that the transcription API is reachable and the
// credentials are accepted. It uses a 30-second timeout and a single attempt.
func CheckGemini(ctx context.Context, checker HealthChecker) Result {
	const name = GeminiCheckName
	if checker == nil {
		return Result{Name: name, Detail: "client unavailable"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckCredentials reports whether credentials are configured for the
// selected backend without contacting it.
func CheckCredentials(cfg *config.Config) Result {
	const name = "Credentials"
	if err := cfg.RequireCredentials(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if cfg.Gemini.UseVertex {
		detail := fmt.Sprintf("Vertex AI project %s", cfg.Gemini.ProjectID)
		if cfg.Gemini.MultiRegion {
			detail += fmt.Sprintf(" (%d regions)", len(cfg.Gemini.Regions))
		}
		return Result{Name: name, Passed: true, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: "Gemini API key set"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the binaries every pipeline stage shells out to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	ffmpeg := cfg.FFmpegBinary()
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Required for silence detection, splitting, and video conversion",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobe(ffmpeg, cfg.FFprobeBinary()),
			Description: "Required for duration probing",
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeHealthError produces a human-readable summary for health check failures.
func summarizeHealthError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (Gemini API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (Gemini API unreachable)"
	}
	return err.Error()
}
