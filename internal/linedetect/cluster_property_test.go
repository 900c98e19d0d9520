package linedetect

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genLines() gopter.Gen {
	return gen.SliceOfN(8, gen.IntRange(0, 2000)).Map(func(coords []int) []Line {
		lines := make([]Line, len(coords))
		for i, c := range coords {
			lines[i] = Line{Axis: Vertical, Coord: c, Min: 0, Max: 1000}
		}
		return lines
	})
}

// TestWidestPair_Properties checks ordering and maximality of the selected pair.
func TestWidestPair_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("pair is sorted and spans the coordinate range", prop.ForAll(
		func(lines []Line) bool {
			a, b, ok := widestPair(lines)
			if !ok {
				return false
			}
			lo, hi := lines[0].Coord, lines[0].Coord
			for _, l := range lines {
				lo, hi = min(lo, l.Coord), max(hi, l.Coord)
			}
			return a.Coord <= b.Coord && a.Coord == lo && b.Coord == hi
		},
		genLines(),
	))

	properties.TestingRun(t)
}

// TestSnapToEdges_StaysInImage checks that snapped coordinates never leave the image.
func TestSnapToEdges_StaysInImage(t *testing.T) {
	properties := gopter.NewProperties(nil)
	cfg := DefaultConfig()

	properties.Property("snapped coordinates stay within [0, size] and ordered", prop.ForAll(
		func(size, p, q int) bool {
			first, second := min(p, q)%size, max(p, q)%size
			if first > second {
				first, second = second, first
			}
			a, b := snapToEdges(first, second, Vertical, size, size, cfg)
			c, d := snapToEdges(first, second, Horizontal, size, size, cfg)
			return a >= 0 && b <= size && a <= b && c >= 0 && d <= size && c <= d
		},
		gen.IntRange(100, 4000),
		gen.IntRange(0, 4000),
		gen.IntRange(0, 4000),
	))

	properties.TestingRun(t)
}
