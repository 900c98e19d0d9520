//go:build gocv

package linedetect

import (
	"context"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// gocvSegmenter runs the same pipeline through OpenCV.
type gocvSegmenter struct {
	cfg Config
}

func newGoCVSegmenter(cfg Config) (segmenter, error) {
	return &gocvSegmenter{cfg: cfg}, nil
}

func (s *gocvSegmenter) Segments(ctx context.Context, img image.Image, axis Axis) ([]Segment, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, 128, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	gocv.BitwiseNot(bin, &bin)

	k := s.cfg.kernelLength(bin.Cols())
	size := image.Pt(1, k)
	if axis == Horizontal {
		size = image.Pt(k, 1)
	}
	return s.axisSegments(ctx, bin, size)
}

func (s *gocvSegmenter) axisSegments(ctx context.Context, bin gocv.Mat, size image.Point) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, size)
	defer kernel.Close()

	strokes := bin.Clone()
	defer strokes.Close()
	for range s.cfg.MorphIterations {
		gocv.Erode(strokes, &strokes, kernel)
	}
	for range s.cfg.MorphIterations {
		gocv.Dilate(strokes, &strokes, kernel)
	}

	if s.cfg.DenoiseKernel > 1 {
		small := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(s.cfg.DenoiseKernel, s.cfg.DenoiseKernel))
		defer small.Close()
		gocv.MorphologyEx(strokes, &strokes, gocv.MorphClose, small)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(strokes, &edges, s.cfg.CannyLow, s.cfg.CannyHigh)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, s.cfg.Hough.Threshold,
		float32(s.cfg.Hough.MinLength), float32(s.cfg.Hough.MaxGap))

	segments := make([]Segment, 0, lines.Rows())
	for i := range lines.Rows() {
		v := lines.GetVeciAt(i, 0)
		segments = append(segments, Segment{X1: int(v[0]), Y1: int(v[1]), X2: int(v[2]), Y2: int(v[3])})
		if s.cfg.Hough.MaxLines > 0 && len(segments) >= s.cfg.Hough.MaxLines {
			break
		}
	}
	return segments, nil
}
