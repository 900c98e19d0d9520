// Package fields turns OCR text into typed document fields.
//
// Extractors never fail: a field that cannot be found is reported as an
// absent Value. Presentation code decides how absence is rendered.
package fields

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is an optional extracted field value. Data holds a string, a
// float64, an Owner or a []PreviousOwner.
type Value struct {
	Found bool
	Data  any
}

// Absent is the zero Value.
var Absent = Value{}

// Text wraps a string value.
func Text(s string) Value { return Value{Found: true, Data: s} }

// Number wraps a numeric value.
func Number(f float64) Value { return Value{Found: true, Data: f} }

// Structured wraps a sub-object such as Owner.
func Structured(v any) Value { return Value{Found: true, Data: v} }

// String renders the value for text and CSV output; absent values render empty.
func (v Value) String() string {
	if !v.Found {
		return ""
	}
	switch d := v.Data.(type) {
	case string:
		return d
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64)
	case fmt.Stringer:
		return d.String()
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprint(d)
		}
		return string(b)
	}
}

// MarshalJSON encodes absent values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Found {
		return []byte("null"), nil
	}
	return json.Marshal(v.Data)
}

// Owner is the current owner block of a CR book.
type Owner struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

func (o Owner) String() string {
	if o.Address == "" {
		return o.Name
	}
	return o.Name + "; " + o.Address
}

// PreviousOwner is one closed or trailing ownership record.
type PreviousOwner struct {
	Name         string `json:"name,omitempty"`
	Address      string `json:"address,omitempty"`
	TransferDate string `json:"transfer_date,omitempty"`
}

func (p PreviousOwner) empty() bool {
	return p.Name == "" && p.Address == "" && p.TransferDate == ""
}
