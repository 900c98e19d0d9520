package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultFlattening(t *testing.T) {
	r := Result{
		Page{{Text: "a"}, {Text: "b"}},
		nil,
		Page{{Text: "c"}},
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.Texts())
	assert.Len(t, r.Lines(), 3)
	assert.False(t, r.Empty())
	assert.Equal(t, "a\nb\nc", r.String())
}

func TestResultEmpty(t *testing.T) {
	assert.True(t, Result(nil).Empty())
	assert.True(t, Result{nil, Page{}}.Empty())
	assert.True(t, Result{Page{{Text: ""}}}.Empty())
	assert.Nil(t, Result(nil).Texts())
}

func TestNewResult(t *testing.T) {
	assert.Nil(t, NewResult())
	r := NewResult("x", "y")
	assert.Len(t, r, 1)
	assert.Equal(t, []string{"x", "y"}, r.Texts())
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"ＷＰ１２３４", "WP1234"},
		{"a\u200bb", "ab"},
		{"  a \t b\n", "a b"},
		{"\x07x", "x"},
		{"WP 1234", "WP 1234"},
		{"\ufb01le", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), "input %q", tt.in)
	}
}

func TestResultClean(t *testing.T) {
	r := Result{
		Page{{Text: "  "}, {Text: " x  y ", Confidence: 0.9}},
		Page{{Text: "\u200b"}},
	}
	cleaned := r.Clean()
	assert.Equal(t, Result{Page{{Text: "x y", Confidence: 0.9}}}, cleaned)
}
