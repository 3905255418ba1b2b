package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/entityscan/internal/lineindex"
	"github.com/dshills/entityscan/pkg/types"
)

// Rule is a named pattern reported under Label when it matches. Patterns
// are matched against single lines without their terminator.
type Rule struct {
	Name    string `mapstructure:"name" json:"name"`
	Label   string `mapstructure:"label" json:"label"`
	Pattern string `mapstructure:"pattern" json:"pattern"`

	// WordBoundaries keeps only matches that start and end at a word
	// boundary, where letters, digits and marks of any script count as word
	// characters. RE2's \b only knows ASCII.
	WordBoundaries bool `mapstructure:"word_boundaries" json:"word_boundaries"`
}

// DefaultRules returns the built-in patterns for personal data in German text
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "E-Mail-Adresse",
			Label:   "EMAIL",
			Pattern: `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
		},
		{
			Name:           "IBAN",
			Label:          "IBAN",
			Pattern:        `[A-Z]{2}[0-9]{2}[ ]?[0-9]{4}[ ]?[0-9]{4}[ ]?[0-9]{4}[ ]?[0-9]{0,4}`,
			WordBoundaries: true,
		},
		{
			Name:    "Telefonnummer (DE)",
			Label:   "PHONE",
			Pattern: `(\+49[ -]?[1-9][0-9]{1,4}[ -]?[0-9]{3,12})|(\(?0[1-9][0-9]{1,4}\)?[ -]?[0-9]{3,12})`,
		},
		{
			Name:           "Postleitzahl (DE)",
			Label:          "POSTCODE",
			Pattern:        `[0-9]{5}`,
			WordBoundaries: true,
		},
		{
			Name:           "Personalausweisnummer (DE)",
			Label:          "ID_CARD",
			Pattern:        `[A-Z0-9]{9}`,
			WordBoundaries: true,
		},
		{
			Name:           "Kreditkartennummer",
			Label:          "CREDIT_CARD",
			Pattern:        `4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12}`,
			WordBoundaries: true,
		},
		{
			Name:           "Datum",
			Label:          "DATE",
			Pattern:        `(0?[1-9]|[12][0-9]|3[01])[.\-/](0?[1-9]|1[0-2])[.\-/][0-9]{2,4}|(19|20)[0-9]{2}-(0?[1-9]|1[0-2])-(0?[1-9]|[12][0-9]|3[01])`,
			WordBoundaries: true,
		},
		{
			Name:           "Adresse (Straße + Hausnummer)",
			Label:          "ADDRESS",
			Pattern:        `\p{L}+(?:\s\p{L}+)*\s[0-9]{1,4}[a-zA-Z]?`,
			WordBoundaries: true,
		},
	}
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// RegexEngine recognizes entities with regular expressions, in process
type RegexEngine struct {
	rules  []compiledRule
	maxLen int
}

// NewRegexEngine compiles rules. Invalid rules are skipped with a warning;
// at least one rule must compile.
func NewRegexEngine(rules []Rule, maxInputLength int, logger *zap.Logger) (*RegexEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if maxInputLength <= 0 {
		maxInputLength = DefaultMaxInputLength
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(rule.Pattern) == "" {
			logger.Warn("skipping regex rule with empty pattern", zap.String("rule", rule.Name))
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			logger.Warn("skipping invalid regex rule",
				zap.String("rule", rule.Name),
				zap.Error(err))
			continue
		}
		if rule.Label == "" {
			rule.Label = rule.Name
		}
		compiled = append(compiled, compiledRule{Rule: rule, re: re})
	}

	if len(compiled) == 0 {
		return nil, fmt.Errorf("%w: no valid regex rules", types.ErrConfiguration)
	}

	return &RegexEngine{rules: compiled, maxLen: maxInputLength}, nil
}

// Process matches every rule against each line of text and returns the
// matches ordered by start offset, then rule order. A match never spans a
// line terminator.
func (r *RegexEngine) Process(ctx context.Context, text string) ([]types.RawSpan, error) {
	if err := CheckInput(text, r.maxLen); err != nil {
		return nil, err
	}

	spans := make([]types.RawSpan, 0)
	lineStart := 0
	for _, line := range lineindex.SplitLines(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if content := types.StripTerminator(line); content != "" {
			spans = r.matchLine(content, lineStart, spans)
		}
		lineStart += utf8.RuneCountInString(line)
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})

	return spans, nil
}

// matchLine appends the matches in line, shifting offsets by lineStart
func (r *RegexEngine) matchLine(line string, lineStart int, spans []types.RawSpan) []types.RawSpan {
	toRunes := byteToRuneOffsets(line)

	for _, rule := range r.rules {
		for _, loc := range rule.re.FindAllStringIndex(line, -1) {
			if loc[0] == loc[1] {
				continue
			}
			if rule.WordBoundaries && !(isWordBoundary(line, loc[0]) && isWordBoundary(line, loc[1])) {
				continue
			}
			spans = append(spans, types.RawSpan{
				Start: lineStart + toRunes(loc[0]),
				End:   lineStart + toRunes(loc[1]),
				Text:  line[loc[0]:loc[1]],
				Label: rule.Label,
			})
		}
	}
	return spans
}

// isWordBoundary reports whether byte offset i of s sits between a word and a
// non-word character, the start and end of s counting as non-word
func isWordBoundary(s string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		before = isWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Rules returns the rules that compiled successfully
func (r *RegexEngine) Rules() []Rule {
	rules := make([]Rule, len(r.rules))
	for i, rule := range r.rules {
		rules[i] = rule.Rule
	}
	return rules
}

func (r *RegexEngine) MaxInputLength() int {
	return r.maxLen
}

func (r *RegexEngine) Name() string {
	return KindRegex
}

func (r *RegexEngine) Close() error {
	return nil
}
