package linedetect

import (
	"context"
	"math"
	"sort"

	"github.com/MeKo-Tech/crbook/internal/mempool"
)

// Segment is a detected line segment in pixel coordinates.
type Segment struct {
	X1, Y1, X2, Y2 int
}

// HoughParams configures the probabilistic Hough transform.
type HoughParams struct {
	// Threshold is the minimum number of votes for a line candidate.
	Threshold int
	// MinLength is the minimum segment extent along x or y, in pixels.
	MinLength int
	// MaxGap is the largest run of missing pixels bridged inside a segment.
	MaxGap int
	// MaxLines caps the number of returned segments (0 = unlimited).
	MaxLines int
}

const numTheta = 180

type houghSpace struct {
	w, h   int
	diag   int
	numRho int
	cos    [numTheta]float64
	sin    [numTheta]float64
	acc    []int32
}

func newHoughSpace(w, h int) *houghSpace {
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	hs := &houghSpace{w: w, h: h, diag: diag, numRho: 2*diag + 1}
	for t := range numTheta {
		theta := float64(t) * math.Pi / numTheta
		hs.cos[t] = math.Cos(theta)
		hs.sin[t] = math.Sin(theta)
	}
	hs.acc = mempool.GetInt32(numTheta * hs.numRho)
	return hs
}

func (hs *houghSpace) release() {
	mempool.PutInt32(hs.acc)
	hs.acc = nil
}

func (hs *houghSpace) rhoIndex(t, x, y int) int {
	return int(math.Round(float64(x)*hs.cos[t]+float64(y)*hs.sin[t])) + hs.diag
}

func (hs *houghSpace) vote(x, y int, delta int32) {
	for t := range numTheta {
		hs.acc[t*hs.numRho+hs.rhoIndex(t, x, y)] += delta
	}
}

// linePoint returns the pixel at step s of the walk along bin (t, r).
// Near-vertical lines are walked along y, all others along x.
func (hs *houghSpace) linePoint(t, r, s int) (int, int) {
	rho := float64(r - hs.diag)
	if math.Abs(hs.cos[t]) > math.Abs(hs.sin[t]) {
		y := s
		x := int(math.Round((rho - float64(y)*hs.sin[t]) / hs.cos[t]))
		return x, y
	}
	x := s
	y := int(math.Round((rho - float64(x)*hs.cos[t]) / hs.sin[t]))
	return x, y
}

func (hs *houghSpace) walkLength(t int) int {
	if math.Abs(hs.cos[t]) > math.Abs(hs.sin[t]) {
		return hs.h
	}
	return hs.w
}

// probabilisticHough extracts line segments from an edge mask. Candidate bins
// are visited once, in descending order of their initial votes (ties by bin
// index); the pixels of every accepted segment are removed from the mask and
// from the accumulator, so one physical line is reported once. The result is
// deterministic for a given mask.
//
// The edge mask is consumed.
func probabilisticHough(ctx context.Context, edges *mask, p HoughParams) ([]Segment, error) {
	hs := newHoughSpace(edges.w, edges.h)
	defer hs.release()

	for y := range edges.h {
		for x := range edges.w {
			if edges.at(x, y) {
				hs.vote(x, y, 1)
			}
		}
	}

	type bin struct {
		idx   int
		votes int32
	}
	var candidates []bin
	for i, v := range hs.acc {
		if int(v) >= p.Threshold {
			candidates = append(candidates, bin{idx: i, votes: v})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].votes > candidates[j].votes
	})

	var segments []Segment
	for ci, c := range candidates {
		if ci%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if int(hs.acc[c.idx]) < p.Threshold {
			continue
		}
		t, r := c.idx/hs.numRho, c.idx%hs.numRho
		found := hs.extractSegments(edges, t, r, p)
		segments = append(segments, found...)
		if p.MaxLines > 0 && len(segments) >= p.MaxLines {
			return segments[:p.MaxLines], nil
		}
	}
	return segments, nil
}

// extractSegments walks the line of bin (t, r), splits it on gaps longer
// than MaxGap and keeps the pieces long enough.
func (hs *houghSpace) extractSegments(edges *mask, t, r int, p HoughParams) []Segment {
	var out []Segment
	n := hs.walkLength(t)
	start, last, gap := -1, -1, 0

	flush := func() {
		if start < 0 {
			return
		}
		x1, y1 := hs.linePoint(t, r, start)
		x2, y2 := hs.linePoint(t, r, last)
		if abs(x2-x1) >= p.MinLength || abs(y2-y1) >= p.MinLength {
			out = append(out, Segment{X1: x1, Y1: y1, X2: x2, Y2: y2})
			for s := start; s <= last; s++ {
				x, y := hs.linePoint(t, r, s)
				if hs.inside(x, y) && edges.at(x, y) {
					edges.pix[y*edges.w+x] = 0
					hs.vote(x, y, -1)
				}
			}
		}
		start, last = -1, -1
	}

	for s := range n {
		x, y := hs.linePoint(t, r, s)
		if hs.inside(x, y) && edges.at(x, y) {
			if start < 0 {
				start = s
			}
			last, gap = s, 0
			continue
		}
		if start >= 0 {
			gap++
			if gap > p.MaxGap {
				flush()
				gap = 0
			}
		}
	}
	flush()
	return out
}

func (hs *houghSpace) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < hs.w && y < hs.h
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
