package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/crbook/internal/linedetect"
	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// State is a step of the extraction state machine.
type State string

const (
	Received        State = "received"
	Validated       State = "validated"
	FrameDetected   State = "frame_detected"
	Cropped         State = "cropped"
	FieldsExtracted State = "fields_extracted"
	Done            State = "done"
	Rejected        State = "rejected"
	Failed          State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == Done || s == Rejected || s == Failed
}

// Event describes one state transition.
type Event struct {
	State   State
	Elapsed time.Duration // time spent reaching State from the previous state
	Err     error         // set on Failed
}

// StateObserver is notified of every transition of a Process call.
// Implementations must be safe for concurrent use when the pipeline is shared.
type StateObserver interface {
	OnState(Event)
}

// ObserverFunc adapts a function to StateObserver.
type ObserverFunc func(Event)

// OnState implements StateObserver.
func (f ObserverFunc) OnState(e Event) { f(e) }

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	// NotExpectedDocumentType is reported through Result.Status, never as an error.
	NotExpectedDocumentType ErrorKind = "not_expected_document_type"
	OutlineNotDetected      ErrorKind = "outline_not_detected"
	// FieldPatternNotFound stays local to a field and becomes an absent value.
	FieldPatternNotFound ErrorKind = "field_pattern_not_found"
	OcrEngineFailure     ErrorKind = "ocr_engine_failure"
	InvalidImage         ErrorKind = "invalid_image"
	Canceled             ErrorKind = "canceled"
	Internal             ErrorKind = "internal"
)

// PhaseError reports the state in which processing stopped.
type PhaseError struct {
	Phase State
	Kind  ErrorKind
	Field string // set when a single field's OCR failed
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s at %s (field %q): %v", e.Kind, e.Phase, e.Field, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// KindOf returns the kind of a *PhaseError in err's chain, or Internal.
func KindOf(err error) ErrorKind {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Internal
}

// classify maps a cause to an ErrorKind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, linedetect.ErrOutlineNotDetected):
		return OutlineNotDetected
	case errors.Is(err, ocr.ErrEngineFailure):
		return OcrEngineFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	default:
		return Internal
	}
}

func phaseError(phase State, err error) *PhaseError {
	return &PhaseError{Phase: phase, Kind: classify(err), Err: err}
}
