package pipeline

import (
	"time"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/frame"
)

// Status is the document-level outcome of a Process call.
type Status string

const (
	StatusOK Status = "ok"
	// StatusNotExpectedDocument marks an image rejected by the validator.
	StatusNotExpectedDocument Status = "not_expected_document"
)

// FieldEntry is one named field of the result.
type FieldEntry struct {
	Name  string       `json:"name"`
	Value fields.Value `json:"value"`
}

// Timings records how long each phase took.
type Timings struct {
	Decode   time.Duration `json:"decode_ns"`
	Validate time.Duration `json:"validate_ns"`
	Detect   time.Duration `json:"detect_ns"`
	Crop     time.Duration `json:"crop_ns"`
	Extract  time.Duration `json:"extract_ns"`
	Total    time.Duration `json:"total_ns"`
}

// Result is the outcome of one extraction.
type Result struct {
	DocType     doctype.Type `json:"doctype"`
	Status      Status       `json:"status"`
	Fields      []FieldEntry `json:"fields"`
	ImageBase64 string       `json:"image_data"`
	Frame       *frame.Frame `json:"frame,omitempty"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Timings     Timings      `json:"timings"`
}

// Rejected reports whether the validator rejected the image.
func (r *Result) Rejected() bool {
	return r != nil && r.Status == StatusNotExpectedDocument
}

// Field returns the value of the named field.
func (r *Result) Field(name string) (fields.Value, bool) {
	if r == nil {
		return fields.Absent, false
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return fields.Absent, false
}

// Found counts the fields with a value.
func (r *Result) Found() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, f := range r.Fields {
		if f.Value.Found {
			n++
		}
	}
	return n
}
