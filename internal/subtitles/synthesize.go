package subtitles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"loom/internal/chunking"
	"loom/internal/cues"
	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/transcribe"
)

const (
	minCueSeconds  = 1.5
	maxCueSeconds  = 7.0
	charsPerSecond = 14.0
	cueGapSeconds  = 0.05
	// outOfRangeSlack is how far past the chunk end a cue may start before
	// strict mode flags it.
	outOfRangeSlack = 1.0
)

// ErrNoEntries reports that no artifact yielded a single cue.
var ErrNoEntries = errors.New("no subtitles could be extracted")

// Reason classifies a ParseErrorRecord.
type Reason string

const (
	ReasonMissingSection     Reason = "missing_section"
	ReasonMissingArtifact    Reason = "missing_artifact"
	ReasonMalformedTimestamp Reason = "malformed_timestamp"
	ReasonOutOfRange         Reason = "out_of_range"
)

// ParseErrorRecord points an operator at one artifact location to repair.
type ParseErrorRecord struct {
	File      string
	Path      string
	Section   string
	Line      int
	Timestamp string
	Reason    Reason
}

func (r ParseErrorRecord) String() string {
	var b strings.Builder
	b.WriteString(r.File)
	if r.Line > 0 {
		fmt.Fprintf(&b, ":%d", r.Line)
	}
	fmt.Fprintf(&b, " %s", r.Reason)
	if r.Section != "" {
		fmt.Fprintf(&b, " section=%q", r.Section)
	}
	if r.Timestamp != "" {
		fmt.Fprintf(&b, " timestamp=%q", r.Timestamp)
	}
	return b.String()
}

// ParseError is the recoverable failure of a synthesis pass. No SRT is
// written when it is returned.
type ParseError struct {
	Records []ParseErrorRecord
}

func (e *ParseError) Error() string {
	if len(e.Records) == 0 {
		return "transcript parse error"
	}
	files := make([]string, 0, len(e.Records))
	seen := make(map[string]bool, len(e.Records))
	for _, r := range e.Records {
		if !seen[r.File] {
			seen[r.File] = true
			files = append(files, r.File)
		}
	}
	return fmt.Sprintf("%d transcript problem(s) in %s", len(e.Records), strings.Join(files, ", "))
}

// Is lets errors.Is match a ParseError against services.ErrValidation.
func (e *ParseError) Is(target error) bool {
	return target == services.ErrValidation
}

// Paths returns the distinct artifact paths named by the records.
func (e *ParseError) Paths() []string {
	var paths []string
	seen := make(map[string]bool)
	for _, r := range e.Records {
		if r.Path != "" && !seen[r.Path] {
			seen[r.Path] = true
			paths = append(paths, r.Path)
		}
	}
	return paths
}

// Input describes one synthesis pass.
type Input struct {
	Chunks           []chunking.Chunk
	TranscriptDir    string
	Mode             cues.Mode
	FirstChunkOffset float64
	Strict           bool
	OutputPath       string
}

// Output summarizes a written SRT.
type Output struct {
	Path    string
	Entries []Entry
	Chunks  int
	// Timeline is the final global offset, the summed chunk durations.
	Timeline float64
}

// Synthesizer converts transcript artifacts into an SRT.
type Synthesizer struct {
	Prober chunking.DurationProber
	Logger *slog.Logger
}

// NewSynthesizer constructs a synthesizer around a duration prober.
func NewSynthesizer(prober chunking.DurationProber, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{Prober: prober, Logger: logger}
}

// Synthesize re-reads every artifact, places its cues on the global
// timeline, and writes the SRT. It returns a *ParseError when any artifact
// needs operator correction and ErrNoEntries when nothing was extracted.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (Output, error) {
	ctx = services.WithStage(ctx, "combine")
	logger := logging.NewComponentLogger(logging.WithContext(ctx, s.Logger), "subtitles")
	if len(in.Chunks) == 0 {
		return Output{}, chunking.ErrNoChunks
	}
	if in.Mode == "" {
		in.Mode = cues.ModeBoth
	}

	chunks := append([]chunking.Chunk(nil), in.Chunks...)
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	offset := in.FirstChunkOffset
	var entries []Entry
	var records []ParseErrorRecord
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		duration := s.chunkDuration(ctx, logger, chunk)
		placed, problems, err := s.placeChunk(logger, in, chunk, offset, duration)
		if err != nil {
			return Output{}, err
		}
		entries = append(entries, placed...)
		records = append(records, problems...)
		offset += duration
	}

	if len(records) > 0 {
		for _, r := range records {
			logger.Warn("transcript needs correction",
				logging.String(logging.FieldChunk, r.File),
				logging.String("reason", string(r.Reason)),
				logging.Int("line", r.Line),
				logging.String("timestamp", r.Timestamp),
			)
		}
		return Output{}, &ParseError{Records: records}
	}
	if len(entries) == 0 {
		return Output{}, ErrNoEntries
	}
	for i := range entries {
		entries[i].Index = i + 1
	}
	if err := WriteSRT(in.OutputPath, entries); err != nil {
		return Output{}, err
	}
	logger.Info("subtitles written",
		logging.String("path", in.OutputPath),
		logging.Int("entries", len(entries)),
		logging.Int("chunks", len(chunks)),
	)
	return Output{Path: in.OutputPath, Entries: entries, Chunks: len(chunks), Timeline: offset}, nil
}

func (s *Synthesizer) chunkDuration(ctx context.Context, logger *slog.Logger, chunk chunking.Chunk) float64 {
	if s.Prober == nil {
		return math.Max(chunk.Duration(), 0)
	}
	seconds, err := s.Prober.Duration(ctx, chunk.Path)
	if err != nil || math.IsNaN(seconds) || seconds < 0 {
		logging.WarnWithContext(logger, "chunk duration unavailable", "duration_probe_failed",
			logging.String(logging.FieldChunk, chunk.Name()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "later subtitles shift earlier by this chunk's length"),
			logging.String(logging.FieldErrorHint, "verify the chunk plays with ffprobe"),
		)
		return 0
	}
	return seconds
}

func (s *Synthesizer) placeChunk(logger *slog.Logger, in Input, chunk chunking.Chunk, offset, duration float64) ([]Entry, []ParseErrorRecord, error) {
	path := transcribe.ArtifactPath(in.TranscriptDir, chunk.Path)
	file := chunk.Stem() + transcribe.ArtifactExt
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, []ParseErrorRecord{{File: file, Path: path, Reason: ReasonMissingArtifact}}, nil
		}
		return nil, nil, fmt.Errorf("read %s: %w", file, err)
	}
	text := strings.ToValidUTF8(string(data), "")

	result := cues.Extract(text, in.Mode)
	if !result.Found {
		section := sectionLabel(in.Mode)
		if !transcribe.ValidContent(text) {
			return nil, []ParseErrorRecord{{File: file, Path: path, Section: section, Reason: ReasonMissingSection}}, nil
		}
		logging.WarnWithContext(logger, "section not found", "section_missing",
			logging.String(logging.FieldChunk, file),
			logging.String("section", section),
			logging.String(logging.FieldImpact, "chunk contributes no subtitles"),
		)
		return nil, nil, nil
	}

	var records []ParseErrorRecord
	if in.Strict {
		for _, a := range result.Anomalies {
			records = append(records, ParseErrorRecord{
				File: file, Path: path, Section: result.Section, Line: a.Line, Timestamp: a.Token, Reason: ReasonMalformedTimestamp,
			})
		}
		if duration > 0 {
			for _, c := range result.Cues {
				if c.Offset > duration+outOfRangeSlack {
					records = append(records, ParseErrorRecord{
						File: file, Path: path, Section: result.Section, Line: c.Line,
						Timestamp: strconv.FormatFloat(c.Offset, 'f', 3, 64), Reason: ReasonOutOfRange,
					})
				}
			}
		}
	} else if len(result.Anomalies) > 0 {
		logger.Debug("unreadable timestamps skipped",
			logging.String(logging.FieldChunk, file),
			logging.Int("count", len(result.Anomalies)),
		)
	}

	return placeCues(result.Cues, offset, duration), records, nil
}

// placeCues converts chunk-local cues into global entries. Each cue lasts
// for its reading time, clamped to [1.5, 7] seconds, and ends 50 ms before
// the next cue or at the chunk end.
func placeCues(list []cues.Cue, offset, duration float64) []Entry {
	entries := make([]Entry, 0, len(list))
	for j, c := range list {
		start := offset + c.Offset
		ideal := float64(utf8.RuneCountInString(c.Text))/charsPerSecond + 1.0
		ideal = math.Max(minCueSeconds, math.Min(ideal, maxCueSeconds))

		constraint := offset + duration
		if j < len(list)-1 {
			constraint = offset + list[j+1].Offset - cueGapSeconds
		}
		end := math.Min(start+ideal, constraint)
		if end <= start {
			end = start + minCueSeconds
		}
		entries = append(entries, Entry{Start: start, End: end, Text: c.Text})
	}
	return entries
}

func sectionLabel(mode cues.Mode) string {
	switch mode {
	case cues.ModeTranscript:
		return "timestamped transcript"
	default:
		return "timestamped translation"
	}
}
