package fields

import (
	"regexp"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// Extractor derives one field value from an OCR result.
type Extractor interface {
	Extract(ocr.Result) Value
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ocr.Result) Value

func (f ExtractorFunc) Extract(r ocr.Result) Value { return f(r) }

// Matcher tries one pattern against a single text fragment and returns the
// normalized field text on success.
type Matcher interface {
	Match(text string) (string, bool)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(string) (string, bool)

func (f MatcherFunc) Match(s string) (string, bool) { return f(s) }

// RegexMatcher accepts fragments matching Pattern. Group selects a capture
// group for the result (0 keeps the whole fragment).
type RegexMatcher struct {
	Pattern *regexp.Regexp
	Group   int
}

func (m RegexMatcher) Match(s string) (string, bool) {
	sub := m.Pattern.FindStringSubmatch(s)
	if sub == nil {
		return "", false
	}
	if m.Group == 0 {
		return s, true
	}
	if m.Group >= len(sub) || sub[m.Group] == "" {
		return "", false
	}
	return sub[m.Group], true
}

// Cascade is an ordered matcher list. Fragments are visited in reading
// order and, for each fragment, matchers in list order; the first success
// wins. Then, when set, rewrites the winning text.
type Cascade struct {
	Matchers []Matcher
	Then     func(string) string
}

func (c Cascade) Extract(r ocr.Result) Value {
	for _, text := range r.Texts() {
		for _, m := range c.Matchers {
			out, ok := m.Match(text)
			if !ok {
				continue
			}
			if c.Then != nil {
				out = c.Then(out)
			}
			return Text(out)
		}
	}
	return Absent
}

// Canonical replaces the whole text when Keyword occurs in it.
type Canonical struct {
	Keyword string
	Value   string
}

// FuzzyTable matches fragments against a ranked target vocabulary.
//
// Each fragment is passed through Prepare, then compared with Targets in
// order; the first target scoring above Threshold accepts the fragment.
// The accepted text then runs through Before, the first applicable
// Canonical rule and After. With ReturnTarget the target itself is the
// result.
type FuzzyTable struct {
	Targets      []string
	Threshold    int
	ReturnTarget bool
	Prepare      func(string) string
	Before       []func(string) string
	Canonical    []Canonical
	After        []func(string) string
}

func (t FuzzyTable) Extract(r ocr.Result) Value {
	for _, text := range r.Texts() {
		if t.Prepare != nil {
			text = t.Prepare(text)
		}
		for _, target := range t.Targets {
			if fuzzy.Ratio(target, text) <= t.Threshold {
				continue
			}
			if t.ReturnTarget {
				return Text(target)
			}
			return Text(t.normalize(text))
		}
	}
	return Absent
}

func (t FuzzyTable) normalize(text string) string {
	for _, step := range t.Before {
		text = step(text)
	}
	for _, c := range t.Canonical {
		if strings.Contains(text, c.Keyword) {
			text = c.Value
			break
		}
	}
	for _, step := range t.After {
		text = step(text)
	}
	return text
}
