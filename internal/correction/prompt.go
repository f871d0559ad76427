package correction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"loom/internal/subtitles"
)

// PromptCommands reads operator decisions line by line from r. "r" or
// "retry" retries, "s" or "stop" stops; anything else prints a hint to w.
// The channel closes at end of input.
func PromptCommands(ctx context.Context, r io.Reader, w io.Writer) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			var cmd Command
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "r", "retry":
				cmd = RetryCombine
			case "s", "stop":
				cmd = StopProcessing
			case "":
				continue
			default:
				fmt.Fprintln(w, "Type r to retry or s to stop.")
				continue
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// PrintRecords writes the problems an operator must repair followed by the
// retry/stop prompt.
func PrintRecords(w io.Writer, records []subtitles.ParseErrorRecord) {
	fmt.Fprintf(w, "\nSubtitle synthesis found %d problem(s):\n", len(records))
	for _, r := range records {
		fmt.Fprintf(w, "  - %s\n", r)
		if r.Path != "" {
			fmt.Fprintf(w, "    %s\n", r.Path)
		}
	}
	fmt.Fprint(w, "Fix the files above, then type r to retry or s to stop: ")
}
