package linedetect

import (
	"sort"
)

// Line is one ruling line recovered from a cluster of segment endpoints.
// Coord is x for vertical lines and y for horizontal lines; Min and Max span
// the orthogonal axis.
type Line struct {
	Axis  Axis `json:"axis"`
	Coord int  `json:"coord"`
	Min   int  `json:"min"`
	Max   int  `json:"max"`
}

// Length is the extent of the line along its own direction.
func (l Line) Length() int { return l.Max - l.Min }

type point struct{ x, y int }

type endpointGroup struct {
	key    int
	points []point
}

// clusterLines groups segment endpoints whose axis coordinate lies within
// tolerance of an existing group key. A point joins the first such group in
// creation order; otherwise it opens a new group keyed by its own coordinate.
func clusterLines(segments []Segment, axis Axis, tolerance int) []Line {
	var groups []*endpointGroup
	add := func(p point) {
		c := p.x
		if axis == Horizontal {
			c = p.y
		}
		for _, g := range groups {
			if abs(c-g.key) <= tolerance {
				g.points = append(g.points, p)
				return
			}
		}
		groups = append(groups, &endpointGroup{key: c, points: []point{p}})
	}
	for _, s := range segments {
		add(point{s.X1, s.Y1})
		add(point{s.X2, s.Y2})
	}

	lines := make([]Line, 0, len(groups))
	for _, g := range groups {
		sum := 0
		lo, hi := 0, 0
		for i, p := range g.points {
			c, span := p.x, p.y
			if axis == Horizontal {
				c, span = p.y, p.x
			}
			sum += c
			if i == 0 || span < lo {
				lo = span
			}
			if i == 0 || span > hi {
				hi = span
			}
		}
		lines = append(lines, Line{
			Axis:  axis,
			Coord: sum / len(g.points),
			Min:   lo,
			Max:   hi,
		})
	}
	return lines
}

// filterByLength keeps lines long enough relative to the image. Vertical
// lines must be strictly longer than ratio*height, horizontal lines at least
// ratio*width.
func filterByLength(lines []Line, axis Axis, w, h int, ratio float64) []Line {
	var out []Line
	for _, l := range lines {
		length := float64(l.Length())
		if axis == Vertical && length > ratio*float64(h) {
			out = append(out, l)
		}
		if axis == Horizontal && length >= ratio*float64(w) {
			out = append(out, l)
		}
	}
	return out
}

// widestPair returns the two lines with the largest coordinate separation,
// ordered by coordinate. Lines are sorted first so ties resolve the same way
// on every run. ok is false when fewer than two lines are given.
func widestPair(lines []Line) (first, second Line, ok bool) {
	if len(lines) < 2 {
		return Line{}, Line{}, false
	}
	sorted := append([]Line(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Coord != b.Coord {
			return a.Coord < b.Coord
		}
		if a.Min != b.Min {
			return a.Min < b.Min
		}
		return a.Max < b.Max
	})

	best := -1
	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			if d := abs(sorted[j].Coord - sorted[i].Coord); d > best {
				best = d
				first, second = sorted[i], sorted[j]
			}
		}
	}
	if first.Coord > second.Coord {
		first, second = second, first
	}
	return first, second, true
}

// snapToEdges replaces a border line by the image boundary when it lies far
// inside the image, which happens when the outer rule was cut off and an
// inner rule was picked instead. Vertical lines use a fraction of the width,
// horizontal lines a fixed pixel gap.
func snapToEdges(first, second int, axis Axis, w, h int, cfg Config) (int, int) {
	if axis == Vertical {
		fw := float64(w)
		if float64(first)/fw > cfg.VerticalEdgeRatio {
			first = 0
		}
		if float64(w-second)/fw > cfg.VerticalEdgeRatio {
			second = w
		}
		return first, second
	}
	if first > cfg.HorizontalEdgeGap {
		first = 0
	}
	if h-second > cfg.HorizontalEdgeGap {
		second = h
	}
	return first, second
}
