package chunker

import (
	"fmt"
	"iter"
	"strings"

	"github.com/dshills/entityscan/pkg/types"
)

const (
	// DefaultChunkSize is the default maximum chunk length in characters
	DefaultChunkSize = 100_000
)

// Chunker groups document lines into bounded, line-aligned chunks
type Chunker struct {
	size int
}

// New creates a Chunker that emits chunks of at most size characters
func New(size int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrConfiguration, size)
	}
	return &Chunker{size: size}, nil
}

// Size returns the configured maximum chunk length
func (c *Chunker) Size() int {
	return c.size
}

// Chunks lazily yields the chunks for lines in document order
func (c *Chunker) Chunks(lines []types.Line) iter.Seq[types.Chunk] {
	return func(yield func(types.Chunk) bool) {
		var (
			buf    strings.Builder
			bufLen int // characters in buf
			start  int // absolute offset of buf
			first  int // first line in buf
			seq    int
		)

		flush := func(last int) bool {
			chunk := types.Chunk{
				Index:     seq,
				Text:      buf.String(),
				Length:    bufLen,
				Start:     start,
				FirstLine: first,
				LastLine:  last,
			}
			seq++
			start += bufLen
			buf.Reset()
			bufLen = 0
			return yield(chunk)
		}

		for i, line := range lines {
			if buf.Len() > 0 && bufLen+line.Length > c.size {
				if !flush(i - 1) {
					return
				}
			}
			if buf.Len() == 0 {
				first = i
			}
			buf.WriteString(line.Content)
			bufLen += line.Length
		}

		if buf.Len() > 0 {
			flush(len(lines) - 1)
		}
	}
}

// Split returns all chunks for lines as a slice
func (c *Chunker) Split(lines []types.Line) []types.Chunk {
	chunks := make([]types.Chunk, 0)
	for chunk := range c.Chunks(lines) {
		chunks = append(chunks, chunk)
	}
	return chunks
}
