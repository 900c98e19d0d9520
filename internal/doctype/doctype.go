// Package doctype names the supported document types.
package doctype

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies a document type.
type Type string

const (
	CRBook   Type = "crbook"
	Licence  Type = "licence"
	Passport Type = "passport"
)

// ErrUnknown is returned by Parse for unsupported names.
var ErrUnknown = errors.New("unknown document type")

// All lists the supported types.
func All() []Type { return []Type{CRBook, Licence, Passport} }

// Parse accepts the canonical names and common spellings such as
// "cr_book", "drlicence" or "license".
func Parse(s string) (Type, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "crbook", "cr":
		return CRBook, nil
	case "licence", "license", "drlicence", "drivinglicence", "drivinglicense":
		return Licence, nil
	case "passport":
		return Passport, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, s)
}

// Label is the human readable name.
func (t Type) Label() string {
	switch t {
	case CRBook:
		return "CR book"
	case Licence:
		return "driving licence"
	case Passport:
		return "passport"
	}
	return string(t)
}

func (t Type) String() string { return string(t) }
