package linedetect

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskFromRuns(w, h int, set func(x, y int) bool) *mask {
	m := newMask(w, h)
	for y := range h {
		for x := range w {
			if set(x, y) {
				m.pix[y*w+x] = 1
			}
		}
	}
	return m
}

func TestOtsuThreshold(t *testing.T) {
	tests := []struct {
		name     string
		pix      []uint8
		expected uint8
	}{
		{name: "empty", pix: nil, expected: 0},
		{name: "black and white", pix: []uint8{0, 0, 255, 255, 255}, expected: 0},
		{name: "two grey levels", pix: []uint8{10, 10, 10, 200, 200}, expected: 10},
		{name: "uniform", pix: []uint8{128, 128, 128}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, otsuThreshold(tt.pix))
		})
	}
}

func TestBinarizeInverted(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(1, 0, color.Gray{Y: 255})
	img.SetGray(2, 0, color.Gray{Y: 20})
	img.SetGray(3, 0, color.Gray{Y: 230})

	m := binarizeInverted(img)
	defer m.release()

	assert.Equal(t, []uint8{1, 0, 1, 0}, m.pix)
}

func TestOpen1D_KeepsLongRunsExactly(t *testing.T) {
	for _, k := range []int{4, 5} {
		m := maskFromRuns(20, 60, func(x, y int) bool {
			return (x == 5 && y >= 10 && y <= 49) || (x == 10 && y >= 20 && y <= 27)
		})

		opened := m.open1D(Vertical, k, 3)

		assert.False(t, opened.at(5, 9), "k=%d", k)
		assert.True(t, opened.at(5, 10), "k=%d", k)
		assert.True(t, opened.at(5, 49), "k=%d", k)
		assert.False(t, opened.at(5, 50), "k=%d", k)
		for y := range 60 {
			assert.False(t, opened.at(10, y), "short run must vanish (k=%d, y=%d)", k, y)
		}
		assert.Equal(t, 40, opened.count())

		opened.release()
		m.release()
	}
}

func TestOpen1D_HorizontalAxis(t *testing.T) {
	m := maskFromRuns(80, 10, func(x, y int) bool {
		return (y == 3 && x >= 5 && x <= 74) || (y == 6 && x >= 30 && x <= 35)
	})
	defer m.release()

	opened := m.open1D(Horizontal, 8, 3)
	defer opened.release()

	assert.Equal(t, 70, opened.count())
	assert.True(t, opened.at(5, 3))
	assert.True(t, opened.at(74, 3))
	assert.False(t, opened.at(32, 6))
}

func TestClose2D_FillsGapsAndKeepsExtent(t *testing.T) {
	m := maskFromRuns(20, 60, func(x, y int) bool {
		return x == 5 && y >= 10 && y <= 40 && y != 20
	})
	defer m.release()

	closed := m.close2D(3)
	defer closed.release()

	assert.True(t, closed.at(5, 20), "one-pixel break should be filled")
	assert.True(t, closed.at(5, 10))
	assert.True(t, closed.at(5, 40))
	assert.False(t, closed.at(5, 9))
	assert.False(t, closed.at(5, 41))
	assert.False(t, closed.at(4, 25))
	assert.False(t, closed.at(6, 25))
}

func TestBoundary(t *testing.T) {
	m := maskFromRuns(10, 20, func(x, y int) bool {
		return x >= 3 && x <= 5 && y >= 2 && y <= 17
	})
	defer m.release()

	edges := m.boundary()
	defer edges.release()

	assert.True(t, edges.at(3, 10))
	assert.False(t, edges.at(4, 10), "interior pixel")
	assert.True(t, edges.at(5, 10))
	assert.True(t, edges.at(4, 2), "top cap")
	assert.True(t, edges.at(4, 17), "bottom cap")
	assert.False(t, edges.at(2, 10))
}

func TestBoundary_FullImageHasNoEdges(t *testing.T) {
	m := maskFromRuns(8, 8, func(int, int) bool { return true })
	defer m.release()

	edges := m.boundary()
	defer edges.release()

	require.Zero(t, edges.count())
}
