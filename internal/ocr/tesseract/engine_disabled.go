//go:build !tesseract

package tesseract

import (
	"context"
	"image"

	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// Engine is a placeholder when Tesseract support is not compiled in.
type Engine struct{}

// New always fails without the tesseract build tag.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

func (e *Engine) Name() string { return EngineName }

func (e *Engine) Recognize(context.Context, image.Image) (ocr.Result, error) {
	return nil, ErrUnavailable
}

func (e *Engine) Close() error { return nil }
