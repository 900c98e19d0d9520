package pipeline

import (
	"fmt"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/licence"
	"github.com/MeKo-Tech/crbook/internal/passport"
)

// ForDocType returns a builder preset for a document type. CR books use the
// region registry; licences and passports are page pipelines.
func ForDocType(t doctype.Type) (*Builder, error) {
	b := NewBuilder().WithDocType(t)
	switch t {
	case doctype.CRBook:
		return b, nil
	case doctype.Licence:
		return b.WithRegistry(nil).WithPageFields(licence.PageFields()), nil
	case doctype.Passport:
		return b.WithRegistry(nil).WithPageFields(passport.PageFields()), nil
	}
	return nil, fmt.Errorf("%w: %q", doctype.ErrUnknown, string(t))
}
