// Package ocrtest provides a scripted OCR engine for tests.
package ocrtest

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// Engine answers recognition queries from a script keyed by the bounds of
// the queried image. Queries for unscripted bounds return Default.
type Engine struct {
	// Default is returned for images without a scripted answer.
	Default ocr.Result
	// Err, when set, is returned by every call.
	Err error
	// OnRecognize runs before each call; tests use it to block or count.
	OnRecognize func(bounds image.Rectangle)

	mu     sync.Mutex
	script map[image.Rectangle]ocr.Result
	calls  []image.Rectangle
	closed bool
}

// New returns an engine with an empty script.
func New() *Engine {
	return &Engine{script: make(map[image.Rectangle]ocr.Result)}
}

// On scripts the lines returned for an image with exactly these bounds.
func (e *Engine) On(bounds image.Rectangle, texts ...string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script[bounds] = ocr.NewResult(texts...)
	return e
}

// OnResult scripts a full result for bounds.
func (e *Engine) OnResult(bounds image.Rectangle, res ocr.Result) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script[bounds] = res
	return e
}

// Name implements ocr.Namer.
func (e *Engine) Name() string { return "fake" }

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if e.OnRecognize != nil {
		e.OnRecognize(b)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, b)
	if e.Err != nil {
		return nil, e.Err
	}
	if res, ok := e.script[b]; ok {
		return res, nil
	}
	return e.Default, nil
}

// Close implements ocr.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Calls returns the bounds of every queried image in call order.
func (e *Engine) Calls() []image.Rectangle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]image.Rectangle(nil), e.calls...)
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
