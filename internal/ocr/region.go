package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
)

// Rect is a zone in percent of the image size: (X1, Y1) top-left and
// (X2, Y2) bottom-right.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// PixelRect converts r, expanded by tol percentage points on every side, to
// pixels of bounds. Each corner is truncated toward zero and clamped into the
// image, so the result always lies inside bounds. It may be empty.
func PixelRect(bounds image.Rectangle, r Rect, tol float64) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	x0 := clamp(int((r.X1-tol)*w/100), 0, bounds.Dx())
	y0 := clamp(int((r.Y1-tol)*h/100), 0, bounds.Dy())
	x1 := clamp(int((r.X2+tol)*w/100), 0, bounds.Dx())
	y1 := clamp(int((r.Y2+tol)*h/100), 0, bounds.Dy())

	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{Min: bounds.Min, Max: bounds.Min}
	}
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Region runs an engine on zones of a document image.
type Region struct {
	engine Engine
}

// NewRegion returns a region adapter backed by engine.
func NewRegion(engine Engine) *Region {
	return &Region{engine: engine}
}

// Engine returns the underlying engine.
func (r *Region) Engine() Engine { return r.engine }

type subImager interface {
	SubImage(image.Rectangle) image.Image
}

// Recognize runs the engine on the zone rect (expanded by tol) of img. An
// empty zone or a zone without text yields an empty Result and no error.
func (r *Region) Recognize(ctx context.Context, img image.Image, rect Rect, tol float64) (Result, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	px := PixelRect(img.Bounds(), rect, tol)
	if px.Empty() {
		slog.Debug("Empty OCR zone", "rect", rect, "tolerance", tol)
		return nil, nil
	}

	start := time.Now()
	res, err := r.engine.Recognize(ctx, zone(img, px))
	if err != nil {
		return nil, WrapEngineError(EngineName(r.engine), "recognize region", err)
	}
	res = res.Clean()

	slog.Debug("Region recognized",
		"zone", px.String(),
		"lines", len(res.Lines()),
		"duration_ms", time.Since(start).Milliseconds())

	if res.Empty() {
		return nil, nil
	}
	return res, nil
}

// RecognizeImage runs the engine on the whole image.
func (r *Region) RecognizeImage(ctx context.Context, img image.Image) (Result, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	res, err := r.engine.Recognize(ctx, img)
	if err != nil {
		return nil, WrapEngineError(EngineName(r.engine), "recognize image", err)
	}
	res = res.Clean()
	if res.Empty() {
		return nil, nil
	}
	return res, nil
}

// zone returns the px part of img, sharing pixels when the image supports it.
func zone(img image.Image, px image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(px)
	}
	return imaging.Crop(img, px)
}
