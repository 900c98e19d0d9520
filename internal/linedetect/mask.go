package linedetect

import (
	"image"

	"github.com/MeKo-Tech/crbook/internal/mempool"
	"github.com/disintegration/imaging"
)

// mask is a binary image, one byte per pixel (0 or 1), row-major.
// Pixel storage comes from mempool and must be returned with release.
type mask struct {
	w, h int
	pix  []uint8
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, pix: mempool.GetBytes(w * h)}
}

func (m *mask) release() {
	if m == nil {
		return
	}
	mempool.PutBytes(m.pix)
	m.pix = nil
}

func (m *mask) at(x, y int) bool {
	return m.pix[y*m.w+x] != 0
}

func (m *mask) count() int {
	n := 0
	for _, v := range m.pix {
		n += int(v)
	}
	return n
}

// grayscale converts img to 8-bit luma (0.299R + 0.587G + 0.114B), origin (0,0).
func grayscale(img image.Image) (pix []uint8, w, h int) {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	w, h = b.Dx(), b.Dy()
	pix = make([]uint8, w*h)
	for y := range h {
		row := g.Pix[y*g.Stride : y*g.Stride+w*4]
		for x := range w {
			pix[y*w+x] = row[x*4]
		}
	}
	return pix, w, h
}

// otsuThreshold returns the threshold maximizing between-class variance.
// Ties resolve to the lowest level.
func otsuThreshold(pix []uint8) uint8 {
	if len(pix) == 0 {
		return 0
	}
	var hist [256]int
	for _, v := range pix {
		hist[v]++
	}

	n := float64(len(pix))
	var mu float64
	for i, c := range hist {
		mu += float64(i) * float64(c)
	}
	mu /= n

	const eps = 1.19209290e-07
	var q1, mu1, maxSigma float64
	best := 0
	for i, c := range hist {
		p := float64(c) / n
		mu1 *= q1
		q1 += p
		q2 := 1 - q1
		if min(q1, q2) < eps || max(q1, q2) > 1-eps {
			continue
		}
		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			best = i
		}
	}
	return uint8(best)
}

// binarizeInverted marks dark pixels (<= Otsu threshold) as foreground so
// ink and ruling lines become set pixels.
func binarizeInverted(img image.Image) *mask {
	pix, w, h := grayscale(img)
	t := otsuThreshold(pix)
	m := newMask(w, h)
	for i, v := range pix {
		if v <= t {
			m.pix[i] = 1
		}
	}
	return m
}

// Axis selects the direction of a one-dimensional structuring element.
type Axis int

const (
	// Vertical runs along y (x fixed).
	Vertical Axis = iota
	// Horizontal runs along x (y fixed).
	Horizontal
)

func (a Axis) String() string {
	if a == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// lineGeometry returns, for the axis, the number of independent lines, the
// length of each line, and the strides between pixels along and across lines.
func (m *mask) lineGeometry(axis Axis) (lines, length, along, across int) {
	if axis == Vertical {
		return m.w, m.h, m.w, 1
	}
	return m.h, m.w, 1, m.w
}

// erode1D erodes with a k-long segment along axis. The anchor sits at k/2.
// Pixels outside the image count as foreground.
func (m *mask) erode1D(axis Axis, k int) *mask {
	return m.morph1D(axis, k, true)
}

// dilate1D dilates with the reflected k-long segment, so erode1D followed by
// dilate1D is an opening that keeps the extent of every surviving run.
// Pixels outside the image count as background.
func (m *mask) dilate1D(axis Axis, k int) *mask {
	return m.morph1D(axis, k, false)
}

func (m *mask) morph1D(axis Axis, k int, erode bool) *mask {
	out := newMask(m.w, m.h)
	if k <= 1 {
		copy(out.pix, m.pix)
		return out
	}

	lines, length, along, across := m.lineGeometry(axis)
	anchor := k / 2
	lo, hi := -anchor, k-1-anchor
	if !erode {
		lo, hi = -hi, anchor
	}

	prefix := mempool.GetInt32(length + 1)
	defer mempool.PutInt32(prefix)

	for l := range lines {
		base := l * across
		prefix[0] = 0
		for i := range length {
			prefix[i+1] = prefix[i] + int32(m.pix[base+i*along])
		}
		for i := range length {
			a, b := max(i+lo, 0), min(i+hi, length-1)
			set := prefix[b+1] - prefix[a]
			var on bool
			if erode {
				on = int(set) == b-a+1
			} else {
				on = set > 0
			}
			if on {
				out.pix[base+i*along] = 1
			}
		}
	}
	return out
}

// open1D applies iterations erosions followed by the same number of dilations.
func (m *mask) open1D(axis Axis, k, iterations int) *mask {
	cur := m.clone()
	for range iterations {
		next := cur.erode1D(axis, k)
		cur.release()
		cur = next
	}
	for range iterations {
		next := cur.dilate1D(axis, k)
		cur.release()
		cur = next
	}
	return cur
}

// close2D applies a k×k closing (dilate then erode). Thin strokes survive,
// pinholes and one-pixel breaks are filled.
func (m *mask) close2D(k int) *mask {
	steps := []struct {
		axis  Axis
		erode bool
	}{
		{Horizontal, false}, {Vertical, false},
		{Horizontal, true}, {Vertical, true},
	}
	cur := m.clone()
	for _, s := range steps {
		next := cur.morph1D(s.axis, k, s.erode)
		cur.release()
		cur = next
	}
	return cur
}

func (m *mask) clone() *mask {
	out := newMask(m.w, m.h)
	copy(out.pix, m.pix)
	return out
}

// boundary keeps foreground pixels that touch background through a
// 4-neighbour inside the image. On a binary image this gives the same
// contours an edge detector would.
func (m *mask) boundary() *mask {
	out := newMask(m.w, m.h)
	for y := range m.h {
		for x := range m.w {
			if !m.at(x, y) {
				continue
			}
			if (x > 0 && !m.at(x-1, y)) || (x < m.w-1 && !m.at(x+1, y)) ||
				(y > 0 && !m.at(x, y-1)) || (y < m.h-1 && !m.at(x, y+1)) {
				out.pix[y*m.w+x] = 1
			}
		}
	}
	return out
}
