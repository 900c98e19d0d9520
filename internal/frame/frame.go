// Package frame holds the document outline frame and crops images to it.
package frame

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// ErrInvalidFrame is returned when a frame cannot be built from the supplied
// line coordinates or does not overlap the image.
var ErrInvalidFrame = errors.New("invalid outline frame")

// Frame is the rectangle bounded by the two vertical and two horizontal
// ruling lines of a document outline. Left < Right and Top < Bottom.
type Frame struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// New builds a frame from exactly two vertical (x) and two horizontal (y)
// coordinates. The coordinates are sorted; the inputs are not modified.
func New(vertical, horizontal []int) (Frame, error) {
	if len(vertical) != 2 || len(horizontal) != 2 {
		return Frame{}, fmt.Errorf("%w: expected exactly two vertical and two horizontal lines, got %d and %d",
			ErrInvalidFrame, len(vertical), len(horizontal))
	}

	xs := []int{vertical[0], vertical[1]}
	ys := []int{horizontal[0], horizontal[1]}
	sort.Ints(xs)
	sort.Ints(ys)

	f := Frame{Left: xs[0], Right: xs[1], Top: ys[0], Bottom: ys[1]}
	if f.Left == f.Right || f.Top == f.Bottom {
		return Frame{}, fmt.Errorf("%w: degenerate frame %v", ErrInvalidFrame, f)
	}
	return f, nil
}

// Rect returns the frame as an image rectangle.
func (f Frame) Rect() image.Rectangle {
	return image.Rect(f.Left, f.Top, f.Right, f.Bottom)
}

// Width returns Right - Left.
func (f Frame) Width() int { return f.Right - f.Left }

// Height returns Bottom - Top.
func (f Frame) Height() int { return f.Bottom - f.Top }

func (f Frame) String() string {
	return fmt.Sprintf("frame(left=%d right=%d top=%d bottom=%d)", f.Left, f.Right, f.Top, f.Bottom)
}

// Crop returns the part of img inside f. The frame is interpreted relative to
// the image origin and clamped to the image bounds. The returned image always
// has its origin at (0,0).
func Crop(img image.Image, f Frame) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	b := img.Bounds()
	r := f.Rect().Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil, fmt.Errorf("%w: %v outside image %dx%d", ErrInvalidFrame, f, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, r), nil
}
