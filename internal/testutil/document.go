package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Label is a line of text drawn onto a synthetic document.
type Label struct {
	X, Y int
	Text string
}

// OutlineSpec describes a synthetic document photograph: a page with a ruled
// rectangular outline whose line centres sit at Left/Right and Top/Bottom.
type OutlineSpec struct {
	Width, Height int

	Left, Right int
	Top, Bottom int
	Thickness   int

	// InnerRules are extra horizontal rules (y centres) spanning the frame,
	// like the table rules printed inside a CR book.
	InnerRules []int

	Background color.Color
	Ink        color.Color
	Labels     []Label
}

// DefaultOutlineSpec returns a 500x500 page with rules at x=50/450 and y=30/470.
func DefaultOutlineSpec() OutlineSpec {
	return OutlineSpec{
		Width:      500,
		Height:     500,
		Left:       50,
		Right:      450,
		Top:        30,
		Bottom:     470,
		Thickness:  3,
		Background: color.White,
		Ink:        color.Black,
	}
}

// DrawOutline renders spec.
func DrawOutline(spec OutlineSpec) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{spec.Background}, image.Point{}, draw.Src)

	ink := &image.Uniform{spec.Ink}
	half := spec.Thickness / 2
	fill := func(r image.Rectangle) {
		draw.Draw(img, r.Intersect(img.Bounds()), ink, image.Point{}, draw.Src)
	}

	top, bottom := spec.Top-half, spec.Bottom-half+spec.Thickness
	left, right := spec.Left-half, spec.Right-half+spec.Thickness
	for _, x := range []int{spec.Left, spec.Right} {
		fill(image.Rect(x-half, top, x-half+spec.Thickness, bottom))
	}
	for _, y := range append([]int{spec.Top, spec.Bottom}, spec.InnerRules...) {
		fill(image.Rect(left, y-half, right, y-half+spec.Thickness))
	}

	drawer := &font.Drawer{Dst: img, Src: ink, Face: basicfont.Face7x13}
	for _, l := range spec.Labels {
		drawer.Dot = fixed.P(l.X, l.Y)
		drawer.DrawString(l.Text)
	}
	return img
}

// CreateTestImage creates a uniformly coloured image.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// CreateTestImageWithText creates a white image with one line of black text.
func CreateTestImageWithText(text string, width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	drawer := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(10, height/2)}
	drawer.DrawString(text)
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG with the given quality.
func EncodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}), "Failed to encode JPEG image")
	return buf.Bytes()
}

// SaveImage saves an image as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600), "Failed to write %s", path)
}

// LoadImageFile loads an image from the specified path (non-testing version).
func LoadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: test paths are controlled
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
