package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/crbook/internal/mempool"
	"github.com/disintegration/imaging"
)

// ResizeToMultiple scales img so that its longer side is at most maxSide and
// both sides are multiples of multiple (at least one multiple). Images are
// never scaled up beyond their own size, except to reach one multiple.
func ResizeToMultiple(img image.Image, maxSide, multiple int) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if multiple <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid multiple %d", multiple)}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("invalid image dimensions")}
	}

	scale := 1.0
	if maxSide > 0 && max(w, h) > maxSide {
		scale = float64(maxSide) / float64(max(w, h))
	}
	nw := roundTo(int(float64(w)*scale), multiple)
	nh := roundTo(int(float64(h)*scale), multiple)
	return imaging.Resize(img, nw, nh, imaging.Linear), nil
}

func roundTo(v, multiple int) int {
	r := (v + multiple/2) / multiple * multiple
	return max(r, multiple)
}

// ResizeToHeight scales img to height h keeping the aspect ratio, clamps the
// width to maxWidth when positive and pads it with black up to a multiple
// of padMultiple when positive.
func ResizeToHeight(img image.Image, h, maxWidth, padMultiple int) (*image.NRGBA, int, error) {
	if img == nil {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 || h <= 0 {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("invalid image dimensions")}
	}
	w := max(int(float64(b.Dx())*float64(h)/float64(b.Dy())), 1)
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	resized := imaging.Resize(img, w, h, imaging.Linear)

	padded := w
	if padMultiple > 0 && w%padMultiple != 0 {
		padded = (w/padMultiple + 1) * padMultiple
	}
	if padded == w {
		return resized, w, nil
	}
	canvas := imaging.New(padded, h, image.Black.C)
	return imaging.Paste(canvas, resized, image.Point{}), w, nil
}

// NormalizeNCHW converts img into a float32 NCHW tensor buffer laid out as
// [3, H, W] with (v/255 - mean[c]) / std[c] per RGB channel. The buffer comes
// from mempool; the caller returns it with mempool.PutFloat32.
func NormalizeNCHW(img image.Image, mean, std [3]float32) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}

	plane := w * h
	data := mempool.GetFloat32(3 * plane)
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range w {
			idx := y*w + x
			for c := range 3 {
				v := float32(row[x*4+c]) / 255
				data[c*plane+idx] = (v - mean[c]) / std[c]
			}
		}
	}
	return data, w, h, nil
}
