// Package chunking writes the planned chunks of a recording to disk and
// rediscovers them on later runs.
package chunking

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNoChunks reports that an export or directory scan produced no chunks.
var ErrNoChunks = errors.New("no audio chunks")

// Chunk is one exported slice of the source timeline. Start and End are
// zero for chunks rediscovered from disk, whose placement is unknown.
type Chunk struct {
	Index int
	Path  string
	Start float64
	End   float64
}

// Duration returns the planned length of the chunk.
func (c Chunk) Duration() float64 {
	return c.End - c.Start
}

// Name returns the chunk file name.
func (c Chunk) Name() string {
	return filepath.Base(c.Path)
}

// Stem returns the chunk file name without its extension.
func (c Chunk) Stem() string {
	name := c.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// FileName returns the canonical name for the chunk at index.
func FileName(index int) string {
	return fmt.Sprintf("chunk_%03d.mp3", index)
}

var digitsPattern = regexp.MustCompile(`\d+`)

// IndexFromName returns the last integer in a file stem, or 0 when it has
// none. The extension is ignored so "chunk_2.mp3" yields 2, not 3.
func IndexFromName(name string) int {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	matches := digitsPattern.FindAllString(stem, -1)
	if len(matches) == 0 {
		return 0
	}
	n, err := strconv.Atoi(matches[len(matches)-1])
	if err != nil {
		return 0
	}
	return n
}

// List discovers the .mp3 chunks in dir ordered by the number in their names.
func List(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chunk dir: %w", err)
	}
	chunks := make([]Chunk, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".mp3") {
			continue
		}
		chunks = append(chunks, Chunk{
			Index: IndexFromName(entry.Name()),
			Path:  filepath.Join(dir, entry.Name()),
		})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunks, dir)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Index == chunks[j].Index {
			return chunks[i].Name() < chunks[j].Name()
		}
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}
