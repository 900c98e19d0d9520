package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
)

// NoMatch is shown for a field whose pattern matched nothing.
const NoMatch = "Oops, no pattern match text found"

// Display returns the presentation value of a field: the data when found,
// NoMatch when absent, and nil for every field of a rejected document.
func Display(v fields.Value, rejected bool) any {
	switch {
	case rejected:
		return nil
	case !v.Found:
		return NoMatch
	default:
		return v.Data
	}
}

// Info is the ordered field mapping. It marshals to a JSON object whose keys
// keep field order.
type Info struct {
	Entries  []FieldEntry
	Rejected bool
}

// MarshalJSON implements json.Marshaler.
func (i Info) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, e := range i.Entries {
		if n > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(Display(e.Value, i.Rejected))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Output is the presentation form of a Result.
type Output struct {
	DocType       doctype.Type `json:"doctype"`
	Status        Status       `json:"status"`
	ExtractedInfo Info         `json:"extracted_info"`
	ImageData     string       `json:"image_data,omitempty"`
}

// NewOutput builds the presentation form; the base64 image is kept only when
// includeImage is set.
func NewOutput(res *Result, includeImage bool) (*Output, error) {
	if res == nil {
		return nil, errors.New("nil result")
	}
	out := &Output{
		DocType:       res.DocType,
		Status:        res.Status,
		ExtractedInfo: Info{Entries: res.Fields, Rejected: res.Rejected()},
	}
	if includeImage {
		out.ImageData = res.ImageBase64
	}
	return out, nil
}

// ToJSON serializes a single result to pretty JSON.
func ToJSON(res *Result, includeImage bool) (string, error) {
	out, err := NewOutput(res, includeImage)
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONBatch serializes several results as a JSON array.
func ToJSONBatch(results []*Result, includeImage bool) (string, error) {
	outs := make([]*Output, 0, len(results))
	for _, res := range results {
		out, err := NewOutput(res, includeImage)
		if err != nil {
			return "", err
		}
		outs = append(outs, out)
	}
	b, err := json.MarshalIndent(outs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// displayString renders a field for text and CSV output.
func displayString(v fields.Value, rejected bool) string {
	switch {
	case rejected:
		return "null"
	case !v.Found:
		return NoMatch
	default:
		return v.String()
	}
}

// ToText renders one "Name: value" line per field.
func ToText(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	lines := make([]string, 0, len(res.Fields)+1)
	if res.Rejected() {
		lines = append(lines, "Status: "+string(res.Status))
	}
	for _, f := range res.Fields {
		lines = append(lines, f.Name+": "+displayString(f.Value, res.Rejected()))
	}
	return strings.Join(lines, "\n"), nil
}

// ToCSV exports the fields as CSV with header.
func ToCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"field", "value", "found"})
	for _, f := range res.Fields {
		_ = w.Write([]string{
			f.Name,
			displayString(f.Value, res.Rejected()),
			fmt.Sprintf("%t", f.Value.Found),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToCSVBatch exports several results as one table with a leading source
// column. names and results are parallel.
func ToCSVBatch(names []string, results []*Result) (string, error) {
	if len(names) != len(results) {
		return "", fmt.Errorf("%d names for %d results", len(names), len(results))
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"source", "doctype", "field", "value", "found"})
	for i, res := range results {
		if res == nil {
			continue
		}
		for _, f := range res.Fields {
			_ = w.Write([]string{
				names[i],
				string(res.DocType),
				f.Name,
				displayString(f.Value, res.Rejected()),
				fmt.Sprintf("%t", f.Value.Found),
			})
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
