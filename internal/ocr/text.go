package ocr

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanText normalizes recognized text: NFKC folding (full-width digits,
// ligatures), zero-width and control character removal, whitespace collapse
// and trimming.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case isZeroWidth(r):
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return false
}

// Clean applies CleanText to every line and drops lines that end up empty.
// Pages that lose all lines are dropped as well.
func (r Result) Clean() Result {
	var out Result
	for _, page := range r {
		var p Page
		for _, line := range page {
			line.Text = CleanText(line.Text)
			if line.Text != "" {
				p = append(p, line)
			}
		}
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}
