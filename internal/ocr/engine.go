package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrEngineFailure marks any failure reported by an OCR engine.
var ErrEngineFailure = errors.New("ocr engine failure")

// Engine recognizes text in an image. A region with no text yields an empty
// Result and a nil error.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (Result, error)
	Close() error
}

// EngineError wraps an engine failure with the operation that triggered it.
type EngineError struct {
	Engine string
	Op     string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("%s: %s %s: %v", ErrEngineFailure, e.Engine, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrEngineFailure, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *EngineError) Unwrap() []error { return []error{ErrEngineFailure, e.Err} }

// WrapEngineError returns err as an *EngineError unless it already is one.
// Context cancellation is passed through unchanged.
func WrapEngineError(engine, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{Engine: engine, Op: op, Err: err}
}

// Namer is implemented by engines that report a name for logs and metrics.
type Namer interface {
	Name() string
}

// EngineName returns the engine's name or "unknown".
func EngineName(e Engine) string {
	if n, ok := e.(Namer); ok {
		return n.Name()
	}
	return "unknown"
}
