package types

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Line is a single document line, terminator included
type Line struct {
	Index   int    // 0-based line number
	Content string // Raw content including its terminator, if any
	Start   int    // Absolute offset of the first character
	Length  int    // Length in characters, terminator included
}

// End returns the absolute offset just past the line terminator
func (l Line) End() int {
	return l.Start + l.Length
}

// Text returns the line content without its terminator
func (l Line) Text() string {
	return StripTerminator(l.Content)
}

// IsLineBreak reports whether r ends a line. Besides "\n" and "\r" this
// includes vertical tab, form feed, the file/group/record separators, NEL
// and the Unicode line and paragraph separators.
func IsLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// StripTerminator removes one trailing line terminator; "\r\n" counts as one
func StripTerminator(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	r, size := utf8.DecodeLastRuneInString(s)
	if size > 0 && IsLineBreak(r) {
		return s[:len(s)-size]
	}
	return s
}

// Chunk is a line-aligned window of the document submitted to the engine
type Chunk struct {
	// Identification
	Index int // Position in the chunk sequence, starting at 0

	// Content
	Text   string // Exact concatenation of whole lines
	Length int    // Length of Text in characters

	// Location
	Start     int // Absolute offset of Text[0] in the document
	FirstLine int // Index of the first line in the chunk
	LastLine  int // Index of the last line in the chunk
}

// End returns the absolute offset just past the chunk
func (c Chunk) End() int {
	return c.Start + c.Length
}

// Validate checks the chunk invariants that do not need the document
func (c Chunk) Validate() error {
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}

	if c.Start < 0 {
		return errors.New("chunk start must not be negative")
	}

	if c.FirstLine > c.LastLine {
		return errors.New("first line must be before or equal to last line")
	}

	if utf8.RuneCountInString(c.Text) != c.Length {
		return errors.New("chunk length does not match its text")
	}

	return nil
}
