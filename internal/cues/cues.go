// Package cues pulls timed lines out of a chunk transcript.
//
// A transcript carries several sections (plain transcript, translation, and
// their timestamped variants). Extract locates the timestamped section for the
// requested content mode and returns its cues in file order with chunk-local
// offsets.
package cues

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Mode selects which section of a transcript supplies the cues.
type Mode string

const (
	ModeTranscript  Mode = "transcript"
	ModeTranslation Mode = "translation"
	// ModeBoth prefers the translation and falls back to the transcript.
	ModeBoth Mode = "both"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeTranscript:
		return ModeTranscript, nil
	case ModeTranslation:
		return ModeTranslation, nil
	case ModeBoth, "":
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("content mode must be transcript, translation, or both (got %q)", value)
	}
}

const (
	headerTranscript  = "timestamped transcript"
	headerTranslation = "timestamped translation"
	// maxHeaderRunes bounds header detection so prose mentioning a header
	// keyword is not mistaken for one.
	maxHeaderRunes = 50
)

// Cue is one timed line with its offset in seconds from the chunk start.
type Cue struct {
	Offset float64
	Text   string
	// Line is the 1-based line number in the transcript.
	Line int
}

// Anomaly is a line inside the section that looks like a timed line but
// whose timestamp could not be read.
type Anomaly struct {
	Line  int
	Token string
	Text  string
}

// Result describes what Extract found.
type Result struct {
	Cues []Cue
	// Section is the header that supplied the cues, e.g. "timestamped translation".
	Section string
	// HeaderLine is the 1-based line of the section header, 0 when not found.
	HeaderLine int
	Found      bool
	Anomalies  []Anomaly
}

var (
	cuePattern     = regexp.MustCompile(`^[\[\(]?\s*(\d{1,2}:\d{2}(?:[:.]\d{1,3})?(?:\.\d{1,3})?)[\]\)]?:?\s*(.*)`)
	anomalyPattern = regexp.MustCompile(`^[\[\(]\s*(\d[^\]\)]*)[\]\)]`)
	headerStripper = strings.NewReplacer("*", "", "#", "", "_", "", ":", "")
	markupStripper = strings.NewReplacer("**", "", "__", "")
	timestampChars = regexp.MustCompile(`[^\d:.]`)
)

func priorities(mode Mode) []string {
	switch mode {
	case ModeTranslation:
		return []string{headerTranslation}
	case ModeTranscript:
		return []string{headerTranscript}
	default:
		return []string{headerTranslation, headerTranscript}
	}
}

// Extract returns the cues of the section selected by mode. A missing section
// yields a Result with Found false and no cues. In ModeBoth a translation
// section without any cues falls back to the transcript section.
func Extract(text string, mode Mode) Result {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	folded := normalizeHeaders(lines)

	var fallback Result
	for _, target := range priorities(mode) {
		start := findHeader(folded, target)
		if start < 0 {
			continue
		}
		result := extractSection(lines, folded, start, target)
		if len(result.Cues) > 0 || mode != ModeBoth {
			return result
		}
		if !fallback.Found {
			fallback = result
		}
	}
	return fallback
}

func normalizeHeaders(lines []string) []string {
	caser := cases.Fold()
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = headerStripper.Replace(caser.String(strings.TrimSpace(line)))
	}
	return out
}

func findHeader(folded []string, target string) int {
	for i, line := range folded {
		if strings.Contains(line, target) && utf8.RuneCountInString(line) < maxHeaderRunes {
			return i
		}
	}
	return -1
}

func isSectionBoundary(line string) bool {
	if utf8.RuneCountInString(line) >= maxHeaderRunes {
		return false
	}
	if !strings.Contains(line, "transcript") && !strings.Contains(line, "translation") {
		return false
	}
	return strings.Contains(line, "timestamped") || line == "transcript" || line == "translation"
}

func extractSection(lines, folded []string, start int, section string) Result {
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if isSectionBoundary(folded[i]) {
			end = i
			break
		}
	}

	result := Result{Section: section, HeaderLine: start + 1, Found: true}
	for i := start + 1; i < end; i++ {
		line := markupStripper.Replace(strings.TrimSpace(lines[i]))
		if line == "" {
			continue
		}
		match := cuePattern.FindStringSubmatch(line)
		if match == nil {
			if m := anomalyPattern.FindStringSubmatch(line); m != nil {
				result.Anomalies = append(result.Anomalies, Anomaly{Line: i + 1, Token: m[1], Text: line})
			}
			continue
		}
		body := strings.TrimSpace(match[2])
		if body == "" {
			continue
		}
		offset, ok := ParseTimestamp(match[1])
		if !ok {
			result.Anomalies = append(result.Anomalies, Anomaly{Line: i + 1, Token: match[1], Text: line})
			continue
		}
		result.Cues = append(result.Cues, Cue{Offset: offset, Text: body, Line: i + 1})
	}
	return result
}

// ParseTimestamp reads H:M:S or M:S (seconds may be fractional) after
// discarding every character other than digits, ':' and '.'.
func ParseTimestamp(value string) (float64, bool) {
	parts := strings.Split(timestampChars.ReplaceAllString(value, ""), ":")
	switch len(parts) {
	case 3:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, false
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, false
		}
		s, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, false
		}
		return float64(h)*3600 + float64(m)*60 + s, true
	case 2:
		m, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, false
		}
		s, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, false
		}
		return float64(m)*60 + s, true
	default:
		return 0, false
	}
}
