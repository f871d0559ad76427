package subtitles

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"loom/internal/fileutil"
)

// Entry is one numbered subtitle on the global timeline, in seconds.
type Entry struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Negative values clamp to
// zero and milliseconds are truncated.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	micros := int64(math.Round(seconds * 1e6))
	total := micros / 1_000_000
	millis := (micros % 1_000_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total%3600)/60, total%60, millis)
}

var timestampPattern = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2}),(\d{3})$`)

// ParseTimestamp reads an HH:MM:SS,mmm timestamp.
func ParseTimestamp(value string) (float64, error) {
	m := timestampPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, fmt.Errorf("invalid srt timestamp %q", value)
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])
	if mins > 59 || secs > 59 {
		return 0, fmt.Errorf("invalid srt timestamp %q", value)
	}
	return float64(h*3600+mins*60+secs) + float64(millis)/1000, nil
}

// Render serializes entries in SubRip format.
func Render(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n\n", e.Index, FormatTimestamp(e.Start), FormatTimestamp(e.End), e.Text)
	}
	return buf.Bytes()
}

// WriteSRT atomically replaces path with the rendered entries.
func WriteSRT(path string, entries []Entry) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create srt dir: %w", err)
		}
	}
	if err := fileutil.WriteFileAtomic(path, Render(entries), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// Issue is one structural problem found in an SRT file.
type Issue struct {
	Line    int
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Message)
}

// Validation summarizes an SRT file check.
type Validation struct {
	Entries int
	Issues  []Issue
	// End is the largest end time seen, in seconds.
	End float64
}

// Valid reports whether no issues were found.
func (v Validation) Valid() bool {
	return len(v.Issues) == 0
}

// ValidateSRT checks numbering, timestamp syntax, and start < end for every
// entry in the file at path.
func ValidateSRT(path string) (Validation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Validation{}, fmt.Errorf("read srt: %w", err)
	}
	return validate(data), nil
}

type block struct {
	line  int
	lines []string
}

func splitBlocks(data []byte) []block {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var blocks []block
	var current *block
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if strings.TrimSpace(text) == "" {
			current = nil
			continue
		}
		if current == nil {
			blocks = append(blocks, block{line: lineNo})
			current = &blocks[len(blocks)-1]
		}
		current.lines = append(current.lines, text)
	}
	return blocks
}

func validate(data []byte) Validation {
	var v Validation
	blocks := splitBlocks(data)
	if len(blocks) == 0 {
		v.Issues = append(v.Issues, Issue{Line: 1, Message: "file contains no entries"})
		return v
	}
	for i, b := range blocks {
		v.Entries++
		want := i + 1
		if n, err := strconv.Atoi(strings.TrimSpace(b.lines[0])); err != nil || n != want {
			v.Issues = append(v.Issues, Issue{Line: b.line, Message: fmt.Sprintf("expected index %d, got %q", want, b.lines[0])})
		}
		if len(b.lines) < 2 {
			v.Issues = append(v.Issues, Issue{Line: b.line, Message: "missing timing line"})
			continue
		}
		start, end, err := parseTiming(b.lines[1])
		if err != nil {
			v.Issues = append(v.Issues, Issue{Line: b.line + 1, Message: err.Error()})
		} else {
			if end <= start {
				v.Issues = append(v.Issues, Issue{Line: b.line + 1, Message: "end is not after start"})
			}
			v.End = max(v.End, end)
		}
		if len(b.lines) < 3 {
			v.Issues = append(v.Issues, Issue{Line: b.line + 1, Message: "missing text"})
		}
	}
	return v
}

func parseTiming(line string) (float64, float64, error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("timing line %q lacks -->", line)
	}
	start, err := ParseTimestamp(left)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimestamp(right)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
