package types

import "fmt"

// RawSpan is an entity as reported by the recognition engine. Offsets are
// relative to the text the engine was given.
type RawSpan struct {
	Start int    // local start offset (inclusive)
	End   int    // local end offset (exclusive)
	Text  string // surface text
	Label string // entity label, e.g. PER, LOC, ORG
}

// Validate checks the span against the length of the text it was found in
func (s RawSpan) Validate(textLength int) error {
	if s.Start < 0 || s.End < s.Start || s.End > textLength {
		return fmt.Errorf("%w: [%d,%d) in text of length %d", ErrInvalidSpan, s.Start, s.End, textLength)
	}
	return nil
}

// EntityHit is a detected entity resolved to document coordinates
type EntityHit struct {
	Text            string  `json:"text"`
	Label           string  `json:"label"`
	HitLinePosition int     `json:"hit_line_position"`
	Start           int     `json:"start"`
	End             int     `json:"end"`
	PrevLine        *string `json:"prev_line"`
	HitLine         string  `json:"hit_line"`
	NextLine        *string `json:"next_line"`
}

// Result is the complete analysis output for one document
type Result struct {
	Entities []EntityHit `json:"entities"`
}

// NewResult wraps hits, never leaving Entities nil
func NewResult(hits []EntityHit) *Result {
	if hits == nil {
		hits = []EntityHit{}
	}
	return &Result{Entities: hits}
}
