// Package splitter cuts documents into bounded, overlapping chunks.
//
// Lengths and offsets are measured in runes. Each chunk ends on the coarsest
// separator that fits the size window, falling back to a hard cut, and the
// next chunk starts exactly ChunkOverlap runes before the previous end.
package splitter

import (
	"fmt"
	"iter"
	"strings"
)

const (
	// DefaultChunkSize is the maximum chunk length used by the build command.
	DefaultChunkSize = 400
	// DefaultChunkOverlap is the overlap between neighbouring chunks.
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried from coarsest to finest.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Config holds the splitting parameters.
type Config struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int
	// ChunkOverlap is the number of runes shared by consecutive chunks.
	ChunkOverlap int
	// Separators overrides DefaultSeparators when non-empty.
	Separators []string
}

// Chunk is a contiguous slice of the source text.
type Chunk struct {
	// Index is the zero-based position of the chunk in the sequence.
	Index int
	// Text is the chunk content.
	Text string
	// Start and End are rune offsets into the source, End exclusive.
	Start int
	End   int
}

// Splitter produces chunks for a fixed Config.
type Splitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// New validates cfg and returns a Splitter.
func New(cfg Config) (*Splitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("splitter: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 {
		return nil, fmt.Errorf("splitter: chunk overlap must not be negative, got %d", cfg.ChunkOverlap)
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("splitter: chunk overlap (%d) must be smaller than chunk size (%d)",
			cfg.ChunkOverlap, cfg.ChunkSize)
	}

	seps := cfg.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	s := &Splitter{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
	for _, sep := range seps {
		if sep == "" {
			continue
		}
		s.separators = append(s.separators, []rune(sep))
	}
	return s, nil
}

// Split returns a lazy sequence of chunks. Each call to the returned
// sequence starts again from the beginning of text.
func (s *Splitter) Split(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		runes := []rune(text)
		n := len(runes)
		start := 0
		for idx := 0; start < n; idx++ {
			end := n
			if n-start > s.size {
				end = s.boundary(runes, start)
			}
			c := Chunk{Index: idx, Text: string(runes[start:end]), Start: start, End: end}
			if !yield(c) || end == n {
				return
			}
			start = end - s.overlap
		}
	}
}

// SplitAll collects Split into a slice.
func (s *Splitter) SplitAll(text string) []Chunk {
	var out []Chunk
	for c := range s.Split(text) {
		out = append(out, c)
	}
	return out
}

// boundary picks the end offset for a chunk beginning at start. The end
// always lies in (start+overlap, start+size] so the sequence advances.
func (s *Splitter) boundary(runes []rune, start int) int {
	limit := start + s.size
	floor := start + s.overlap
	for _, sep := range s.separators {
		if end := lastSeparatorEnd(runes, sep, floor, limit); end > 0 {
			return end
		}
	}
	return limit
}

// lastSeparatorEnd returns the offset just past the last occurrence of sep
// ending in (floor, limit], or 0 if there is none.
func lastSeparatorEnd(runes, sep []rune, floor, limit int) int {
	for end := limit; end > floor; end-- {
		begin := end - len(sep)
		if begin < 0 {
			break
		}
		if string(runes[begin:end]) == string(sep) {
			return end
		}
	}
	return 0
}

// Join reassembles chunk texts by dropping the overlap from every chunk
// after the first. It is the inverse of Split for a given overlap.
func Join(chunks []Chunk, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 {
			r = r[min(overlap, len(r)):]
		}
		b.WriteString(string(r))
	}
	return b.String()
}
