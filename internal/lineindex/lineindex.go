package lineindex

import (
	"sort"
	"unicode/utf8"

	"github.com/dshills/entityscan/pkg/types"
)

// Index is an immutable line table for one document
type Index struct {
	lines   []types.Line
	offsets []int // offsets[i] == lines[i].Start, strictly increasing
	length  int   // total document length in characters
}

// Build splits text into lines and records their absolute start offsets
func Build(text string) *Index {
	raw := SplitLines(text)

	ix := &Index{
		lines:   make([]types.Line, len(raw)),
		offsets: make([]int, len(raw)),
	}

	offset := 0
	for i, content := range raw {
		n := utf8.RuneCountInString(content)
		ix.lines[i] = types.Line{
			Index:   i,
			Content: content,
			Start:   offset,
			Length:  n,
		}
		ix.offsets[i] = offset
		offset += n
	}
	ix.length = offset

	return ix
}

// SplitLines splits text after every line terminator, keeping the terminator.
// "\r\n" is one terminator; see types.IsLineBreak for the full set. A final
// line without terminator is kept as is; an empty text yields no lines.
func SplitLines(text string) []string {
	var lines []string

	start := 0
	for i, r := range text {
		if i < start || !types.IsLineBreak(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if r == '\r' && end < len(text) && text[end] == '\n' {
			end++
		}
		lines = append(lines, text[start:end])
		start = end
	}

	if start < len(text) {
		lines = append(lines, text[start:])
	}

	return lines
}

// Lookup returns the greatest line index i with Offset(i) <= offset.
// Offsets before the first line clamp to 0, offsets past the last line start
// clamp to the last line.
func (ix *Index) Lookup(offset int) int {
	if len(ix.offsets) == 0 {
		return 0
	}

	// First line starting after offset; the line before it contains offset
	i := sort.Search(len(ix.offsets), func(i int) bool {
		return ix.offsets[i] > offset
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// Len returns the number of lines
func (ix *Index) Len() int {
	return len(ix.lines)
}

// Length returns the document length in characters
func (ix *Index) Length() int {
	return ix.length
}

// Lines returns the line table. Callers must not modify it.
func (ix *Index) Lines() []types.Line {
	return ix.lines
}

// Line returns line i
func (ix *Index) Line(i int) types.Line {
	return ix.lines[i]
}

// Offset returns the absolute start offset of line i
func (ix *Index) Offset(i int) int {
	return ix.offsets[i]
}

// Context returns line i and its neighbours with terminators stripped.
// prev is nil for the first line and next is nil for the last one.
func (ix *Index) Context(i int) (prev *string, hit string, next *string) {
	if i > 0 {
		p := ix.lines[i-1].Text()
		prev = &p
	}

	hit = ix.lines[i].Text()

	if i+1 < len(ix.lines) {
		n := ix.lines[i+1].Text()
		next = &n
	}

	return prev, hit, next
}
