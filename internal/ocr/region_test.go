package ocr_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/MeKo-Tech/crbook/internal/ocr/ocrtest"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelRect(t *testing.T) {
	tests := []struct {
		name     string
		bounds   image.Rectangle
		rect     ocr.Rect
		tol      float64
		expected image.Rectangle
	}{
		{
			name:     "whole image",
			bounds:   image.Rect(0, 0, 400, 300),
			rect:     ocr.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			expected: image.Rect(0, 0, 400, 300),
		},
		{
			name:     "overflow is clamped",
			bounds:   image.Rect(0, 0, 400, 300),
			rect:     ocr.Rect{X1: -10, Y1: -10, X2: 150, Y2: 150},
			tol:      20,
			expected: image.Rect(0, 0, 400, 300),
		},
		{
			name:     "registration number zone",
			bounds:   image.Rect(0, 0, 400, 300),
			rect:     ocr.Rect{X1: 9, Y1: 14, X2: 12, Y2: 10},
			tol:      12.5,
			expected: image.Rect(0, 4, 98, 67),
		},
		{
			name:     "inverted zone is empty",
			bounds:   image.Rect(0, 0, 400, 300),
			rect:     ocr.Rect{X1: 50, Y1: 50, X2: 40, Y2: 40},
			expected: image.Rectangle{},
		},
		{
			name:     "offset bounds",
			bounds:   image.Rect(10, 20, 110, 220),
			rect:     ocr.Rect{X1: 10, Y1: 10, X2: 20, Y2: 20},
			expected: image.Rect(20, 40, 30, 60),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ocr.PixelRect(tt.bounds, tt.rect, tt.tol)
			if tt.expected.Empty() {
				assert.True(t, got.Empty())
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func newDocument(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.White)
}

func TestRegionRecognize_ScriptedZone(t *testing.T) {
	doc := newDocument(400, 300)
	rect := ocr.Rect{X1: 55, Y1: 12, X2: 69, Y2: 10}
	zone := ocr.PixelRect(doc.Bounds(), rect, 11)

	engine := ocrtest.New().On(zone, "  MA3FJF12S00123456 ", "")
	region := ocr.NewRegion(engine)

	res, err := region.Recognize(context.Background(), doc, rect, 11)
	require.NoError(t, err)
	assert.Equal(t, []string{"MA3FJF12S00123456"}, res.Texts())
	assert.Equal(t, []image.Rectangle{zone}, engine.Calls())
}

func TestRegionRecognize_EmptyZoneSkipsEngine(t *testing.T) {
	engine := ocrtest.New()
	region := ocr.NewRegion(engine)

	res, err := region.Recognize(context.Background(), newDocument(100, 100),
		ocr.Rect{X1: 60, Y1: 60, X2: 50, Y2: 50}, 0)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, engine.Calls())
}

func TestRegionRecognize_NothingFound(t *testing.T) {
	engine := ocrtest.New()
	engine.Default = ocr.Result{ocr.Page{{Text: "   "}}}
	region := ocr.NewRegion(engine)

	res, err := region.Recognize(context.Background(), newDocument(100, 100),
		ocr.Rect{X1: 10, Y1: 10, X2: 50, Y2: 50}, 0)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestRegionRecognize_EngineFailure(t *testing.T) {
	cause := errors.New("session crashed")
	engine := ocrtest.New()
	engine.Err = cause
	region := ocr.NewRegion(engine)

	_, err := region.Recognize(context.Background(), newDocument(100, 100),
		ocr.Rect{X1: 10, Y1: 10, X2: 50, Y2: 50}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ocr.ErrEngineFailure)
	assert.ErrorIs(t, err, cause)

	var ee *ocr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "fake", ee.Engine)
	assert.Contains(t, err.Error(), "session crashed")
}

func TestRegionRecognize_Cancelled(t *testing.T) {
	region := ocr.NewRegion(ocrtest.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := region.Recognize(ctx, newDocument(100, 100), ocr.Rect{X2: 100, Y2: 100}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ocr.ErrEngineFailure)
}

func TestRegionRecognizeImage(t *testing.T) {
	doc := newDocument(120, 80)
	engine := ocrtest.New().On(doc.Bounds(), "CERTIFICATE OF REGISTRATION")
	region := ocr.NewRegion(engine)

	res, err := region.RecognizeImage(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "CERTIFICATE OF REGISTRATION", res.String())

	_, err = region.RecognizeImage(context.Background(), nil)
	assert.Error(t, err)
}

func TestWrapEngineError(t *testing.T) {
	assert.NoError(t, ocr.WrapEngineError("x", "op", nil))
	assert.Equal(t, context.Canceled, ocr.WrapEngineError("x", "op", context.Canceled))

	inner := &ocr.EngineError{Engine: "paddle", Op: "detect", Err: errors.New("boom")}
	assert.Same(t, inner, ocr.WrapEngineError("pool", "recognize", inner))
}
