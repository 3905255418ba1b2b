package engine

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dshills/entityscan/pkg/types"
)

// Common errors
var (
	ErrUnsupportedEngine = errors.New("unsupported engine")
	ErrInputTooLong      = errors.New("input exceeds engine maximum length")
	ErrMissingURL        = errors.New("engine url not configured")
	ErrNoEngines         = errors.New("no engines configured")
)

// Engine kinds
const (
	KindHTTP  = "http"
	KindRegex = "regex"
	KindMulti = "multi"

	// DefaultMaxInputLength is the largest text, in characters, an engine
	// accepts unless configured otherwise
	DefaultMaxInputLength = 2_000_000
)

// Engine recognizes named entities in a bounded text window
type Engine interface {
	// Process returns the entities found in text, in engine order.
	// Span offsets are character offsets relative to text.
	Process(ctx context.Context, text string) ([]types.RawSpan, error)

	// MaxInputLength returns the longest text, in characters, Process accepts
	MaxInputLength() int

	// Name identifies the engine and model, e.g. "http:de_core_news_sm"
	Name() string

	// Close releases any resources held by the engine
	Close() error
}

// CheckInput rejects text longer than max characters
func CheckInput(text string, max int) error {
	if n := utf8.RuneCountInString(text); n > max {
		return fmt.Errorf("%w: %d > %d characters", ErrInputTooLong, n, max)
	}
	return nil
}

// byteToRuneOffsets returns a function converting byte offsets in text to
// character offsets. Offsets must fall on rune boundaries.
func byteToRuneOffsets(text string) func(int) int {
	// Fast path for ASCII text
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return func(b int) int { return b }
	}

	runeAt := make([]int, len(text)+1)
	r := 0
	for i := range text {
		runeAt[i] = r
		r++
	}
	runeAt[len(text)] = r

	return func(b int) int { return runeAt[b] }
}
