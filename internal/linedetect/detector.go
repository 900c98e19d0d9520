// Package linedetect finds the printed outline of a document photograph: the
// two dominant vertical and two dominant horizontal ruling lines.
//
// Each axis is processed independently. The image is binarized with Otsu's
// method, a long one-dimensional opening keeps only strokes running along the
// axis, a probabilistic Hough transform recovers segments, and segment
// endpoints are clustered into lines. The widest pair of sufficiently long
// lines is the frame on that axis.
package linedetect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/crbook/internal/frame"
)

// ErrOutlineNotDetected is returned when an axis has fewer than two
// qualifying line clusters.
var ErrOutlineNotDetected = errors.New("document outline not detected")

// ErrBackendUnavailable is returned when the configured backend was not
// compiled into the binary.
var ErrBackendUnavailable = errors.New("line detection backend not available")

// DetectionError reports which axis failed and how many lines qualified.
type DetectionError struct {
	Axis  Axis
	Found int
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("%s: %d qualifying %s line(s), need 2", ErrOutlineNotDetected, e.Found, e.Axis)
}

func (e *DetectionError) Unwrap() error { return ErrOutlineNotDetected }

// Backend names.
const (
	BackendNative = "native"
	BackendGoCV   = "gocv"
)

// Config holds line detection parameters.
type Config struct {
	Backend string

	// KernelDivisor sets the opening kernel length to width/KernelDivisor.
	KernelDivisor   int
	MorphIterations int
	DenoiseKernel   int

	Hough HoughParams

	// CannyLow and CannyHigh are only used by the gocv backend.
	CannyLow  float32
	CannyHigh float32

	ClusterTolerance  int
	MinLengthRatio    float64
	VerticalEdgeRatio float64
	HorizontalEdgeGap int
}

// DefaultConfig returns the parameters used for CR book photographs.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendNative,
		KernelDivisor:   40,
		MorphIterations: 3,
		DenoiseKernel:   3,
		Hough: HoughParams{
			Threshold: 100,
			MinLength: 100,
			MaxGap:    80,
			MaxLines:  4096,
		},
		CannyLow:          50,
		CannyHigh:         150,
		ClusterTolerance:  5,
		MinLengthRatio:    0.25,
		VerticalEdgeRatio: 0.35,
		HorizontalEdgeGap: 150,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Backend != BackendNative && c.Backend != BackendGoCV:
		return fmt.Errorf("unknown line detection backend %q", c.Backend)
	case c.KernelDivisor <= 0:
		return fmt.Errorf("kernel divisor must be positive, got %d", c.KernelDivisor)
	case c.MorphIterations < 0 || c.DenoiseKernel < 0:
		return errors.New("morphology iterations and denoise kernel must not be negative")
	case c.Hough.Threshold <= 0 || c.Hough.MinLength <= 0 || c.Hough.MaxGap < 0:
		return fmt.Errorf("invalid hough parameters %+v", c.Hough)
	case c.ClusterTolerance < 0:
		return fmt.Errorf("cluster tolerance must not be negative, got %d", c.ClusterTolerance)
	case c.MinLengthRatio < 0 || c.MinLengthRatio > 1:
		return fmt.Errorf("min length ratio must be within [0,1], got %.2f", c.MinLengthRatio)
	case c.VerticalEdgeRatio < 0 || c.VerticalEdgeRatio > 1:
		return fmt.Errorf("vertical edge ratio must be within [0,1], got %.2f", c.VerticalEdgeRatio)
	case c.HorizontalEdgeGap < 0:
		return fmt.Errorf("horizontal edge gap must not be negative, got %d", c.HorizontalEdgeGap)
	}
	return nil
}

func (c Config) kernelLength(width int) int {
	return max(width/c.KernelDivisor, 1)
}

// segmenter turns an image into Hough segments along one axis.
type segmenter interface {
	Segments(ctx context.Context, img image.Image, axis Axis) ([]Segment, error)
}

// Detector finds outline frames. It holds no per-image state and is safe for
// concurrent use.
type Detector struct {
	cfg Config
	seg segmenter
}

// New creates a detector for cfg.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		seg segmenter
		err error
	)
	switch cfg.Backend {
	case BackendGoCV:
		seg, err = newGoCVSegmenter(cfg)
	default:
		seg = &nativeSegmenter{cfg: cfg}
	}
	if err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, seg: seg}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// Outline is the detection result with the lines that produced the frame.
type Outline struct {
	Frame      frame.Frame
	Vertical   []Line
	Horizontal []Line
}

// DetectFrame returns the outline frame of img.
func (d *Detector) DetectFrame(ctx context.Context, img image.Image) (frame.Frame, error) {
	o, err := d.Detect(ctx, img)
	if err != nil {
		return frame.Frame{}, err
	}
	return o.Frame, nil
}

// DetectVertical returns the sorted x coordinates of the left and right rules.
func (d *Detector) DetectVertical(ctx context.Context, img image.Image) (left, right int, err error) {
	left, right, _, err = d.detectAxis(ctx, img, Vertical)
	return left, right, err
}

// DetectHorizontal returns the sorted y coordinates of the top and bottom rules.
func (d *Detector) DetectHorizontal(ctx context.Context, img image.Image) (top, bottom int, err error) {
	top, bottom, _, err = d.detectAxis(ctx, img, Horizontal)
	return top, bottom, err
}

// Detect runs both passes and returns the frame with the candidate lines.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Outline, error) {
	start := time.Now()

	left, right, vLines, err := d.detectAxis(ctx, img, Vertical)
	if err != nil {
		return nil, err
	}
	top, bottom, hLines, err := d.detectAxis(ctx, img, Horizontal)
	if err != nil {
		return nil, err
	}

	f, err := frame.New([]int{left, right}, []int{top, bottom})
	if err != nil {
		return nil, err
	}

	slog.Debug("Outline detected",
		"frame", f.String(),
		"vertical_lines", len(vLines),
		"horizontal_lines", len(hLines),
		"duration_ms", time.Since(start).Milliseconds())

	return &Outline{Frame: f, Vertical: vLines, Horizontal: hLines}, nil
}

func (d *Detector) detectAxis(ctx context.Context, img image.Image, axis Axis) (int, int, []Line, error) {
	if img == nil {
		return 0, 0, nil, errors.New("nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	segs, err := d.seg.Segments(ctx, img, axis)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%s line segmentation failed: %w", axis, err)
	}

	lines := clusterLines(segs, axis, d.cfg.ClusterTolerance)
	lines = filterByLength(lines, axis, w, h, d.cfg.MinLengthRatio)
	a, c, ok := widestPair(lines)
	if !ok {
		return 0, 0, lines, &DetectionError{Axis: axis, Found: len(lines)}
	}
	first, second := snapToEdges(a.Coord, c.Coord, axis, w, h, d.cfg)

	slog.Debug("Axis lines selected",
		"axis", axis.String(),
		"segments", len(segs),
		"lines", len(lines),
		"first", first,
		"second", second)

	return first, second, lines, nil
}

// nativeSegmenter is the pure Go pipeline.
type nativeSegmenter struct {
	cfg Config
}

func (s *nativeSegmenter) Segments(ctx context.Context, img image.Image, axis Axis) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bin := binarizeInverted(img)
	defer bin.release()

	return s.axisSegments(ctx, bin, axis, s.cfg.kernelLength(bin.w))
}

func (s *nativeSegmenter) axisSegments(ctx context.Context, bin *mask, axis Axis, k int) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	strokes := bin.open1D(axis, k, s.cfg.MorphIterations)
	defer strokes.release()

	denoised := strokes
	if s.cfg.DenoiseKernel > 1 {
		denoised = strokes.close2D(s.cfg.DenoiseKernel)
		defer denoised.release()
	}

	edges := denoised.boundary()
	defer edges.release()

	return probabilisticHough(ctx, edges, s.cfg.Hough)
}
