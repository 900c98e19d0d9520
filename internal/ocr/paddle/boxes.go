package paddle

import (
	"image"
	"math"
	"sort"

	"github.com/MeKo-Tech/crbook/internal/mempool"
)

// textBox is a detected text region in probability-map coordinates.
type textBox struct {
	MinX, MinY, MaxX, MaxY float64
	Score                  float64
}

type component struct {
	count                  int
	sum                    float64
	minX, minY, maxX, maxY int
}

// components labels the 4-connected regions of prob >= thresh.
func components(prob []float32, w, h int, thresh float32) []component {
	seen := mempool.GetBytes(w * h)
	defer mempool.PutBytes(seen)

	var out []component
	queue := make([]int, 0, 256)
	for start := range w * h {
		if seen[start] != 0 || prob[start] < thresh {
			continue
		}
		sx, sy := start%w, start/w
		c := component{minX: sx, minY: sy, maxX: sx, maxY: sy}
		seen[start] = 1
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			c.count++
			c.sum += float64(prob[i])
			c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
			c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)
			for _, n := range [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if seen[ni] == 0 && prob[ni] >= thresh {
					seen[ni] = 1
					queue = append(queue, ni)
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// unclip grows a w x h box by area*ratio/perimeter on every side.
func unclip(b textBox, ratio float64) textBox {
	w, h := b.MaxX-b.MinX, b.MaxY-b.MinY
	if w <= 0 || h <= 0 || ratio <= 0 {
		return b
	}
	d := w * h * ratio / (2 * (w + h))
	return textBox{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d, Score: b.Score}
}

// boxesFromMap turns a DB probability map into scored, unclipped boxes.
// Regions whose shorter side is below minSize pixels are dropped.
func boxesFromMap(prob []float32, w, h int, opts DetectOptions) []textBox {
	if w <= 0 || h <= 0 || len(prob) < w*h {
		return nil
	}
	var boxes []textBox
	for _, c := range components(prob[:w*h], w, h, opts.Thresh) {
		bw, bh := c.maxX-c.minX+1, c.maxY-c.minY+1
		if min(bw, bh) < opts.MinSize {
			continue
		}
		score := c.sum / float64(c.count)
		if score < opts.BoxThresh {
			continue
		}
		b := textBox{
			MinX: float64(c.minX), MinY: float64(c.minY),
			MaxX: float64(c.maxX + 1), MaxY: float64(c.maxY + 1),
			Score: score,
		}
		boxes = append(boxes, unclip(b, opts.UnclipRatio))
	}
	return boxes
}

// toImageRects scales map boxes to the source bounds and clamps them.
func toImageRects(boxes []textBox, mapW, mapH int, bounds image.Rectangle) []image.Rectangle {
	sx := float64(bounds.Dx()) / float64(mapW)
	sy := float64(bounds.Dy()) / float64(mapH)
	out := make([]image.Rectangle, 0, len(boxes))
	for _, b := range boxes {
		r := image.Rect(
			int(math.Floor(b.MinX*sx)), int(math.Floor(b.MinY*sy)),
			int(math.Ceil(b.MaxX*sx)), int(math.Ceil(b.MaxY*sy)),
		).Add(bounds.Min).Intersect(bounds)
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out
}

// sortReadingOrder orders boxes top to bottom, then left to right for
// boxes whose tops are within rowTolerance pixels.
func sortReadingOrder(rects []image.Rectangle, rowTolerance int) {
	sort.SliceStable(rects, func(i, j int) bool {
		if rects[i].Min.Y != rects[j].Min.Y {
			return rects[i].Min.Y < rects[j].Min.Y
		}
		return rects[i].Min.X < rects[j].Min.X
	})
	for i := 0; i+1 < len(rects); i++ {
		for j := i; j >= 0; j-- {
			a, b := rects[j], rects[j+1]
			if abs(b.Min.Y-a.Min.Y) < rowTolerance && b.Min.X < a.Min.X {
				rects[j], rects[j+1] = b, a
				continue
			}
			break
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
