package fields

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/stretchr/testify/assert"
)

// The vocabulary thresholds (class and fuel > 50, make > 80) are tuned to
// these scores.
func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"MOTOR TRICYCLE", "MOTORCYCLE", 83},
		{"MOTOR CYCLE", "MOTORCYCLE", 95},
		{"ABC", "ABC", 100},
		{"DIESEL", "DIESL", 91},
		{"PETROL", "DIESEL", 33},
		{"abcd", "bcde", 75},
		{"A", "ABCDEFGHIJKLMNO", 13}, // 12.5 rounds half up
		{"", "ABC", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, fuzzy.Ratio(tt.a, tt.b))
		})
	}
}

func TestRatio_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("bounded to 0..100", prop.ForAll(
		func(a, b string) bool {
			r := fuzzy.Ratio(a, b)
			return r >= 0 && r <= 100
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("symmetric", prop.ForAll(
		func(a, b string) bool { return fuzzy.Ratio(a, b) == fuzzy.Ratio(b, a) },
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("identical non-empty strings score 100", prop.ForAll(
		func(a string) bool { return a == "" || fuzzy.Ratio(a, a) == 100 },
		gen.AnyString(),
	))

	properties.Property("disjoint alphabets score 0", prop.ForAll(
		func(a, b string) bool { return fuzzy.Ratio(a, strings.Repeat("7", len(b)+1)) == 0 },
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
