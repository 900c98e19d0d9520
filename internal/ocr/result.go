// Package ocr defines the boundary to optical character recognition engines
// and the region adapter that runs an engine on a percentage-addressed zone
// of a cropped document.
package ocr

import (
	"image"
	"strings"
)

// TextLine is one recognized line of text in engine reading order.
type TextLine struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Page groups the lines an engine returned for one queried image.
type Page []TextLine

// Result is the engine output for one query. Engines return a single page
// for a plain image; nested block layouts may produce more.
type Result []Page

// Texts flattens every line of every page in reading order.
func (r Result) Texts() []string {
	var out []string
	for _, page := range r {
		for _, line := range page {
			out = append(out, line.Text)
		}
	}
	return out
}

// Lines flattens every line of every page in reading order.
func (r Result) Lines() []TextLine {
	var out []TextLine
	for _, page := range r {
		out = append(out, page...)
	}
	return out
}

// Empty reports whether the result holds no text at all.
func (r Result) Empty() bool {
	for _, page := range r {
		for _, line := range page {
			if line.Text != "" {
				return false
			}
		}
	}
	return true
}

// String joins all lines with newlines.
func (r Result) String() string {
	return strings.Join(r.Texts(), "\n")
}

// NewResult wraps plain strings into a single-page result.
func NewResult(texts ...string) Result {
	if len(texts) == 0 {
		return nil
	}
	page := make(Page, 0, len(texts))
	for _, t := range texts {
		page = append(page, TextLine{Text: t, Confidence: 1})
	}
	return Result{page}
}
