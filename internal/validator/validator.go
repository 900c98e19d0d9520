// Package validator rejects images that do not look like the expected
// document before any geometric work is done.
package validator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/ocr"
)

var keywords = map[doctype.Type][]string{
	doctype.CRBook:   {"REGISTRATION", "CHASSIS", "ENGINE", "CYLINDER", "VEHICLE", "TAXATION", "STATUS", "FUEL"},
	doctype.Licence:  {"LICENCE", "LICENSE", "DRIVING"},
	doctype.Passport: {"PASSPORT", "P<"},
}

// Keywords returns the keywords that identify t.
func Keywords(t doctype.Type) []string {
	return append([]string(nil), keywords[t]...)
}

// FindKeyword returns the first keyword present in any fragment, compared
// case-insensitively.
func FindKeyword(r ocr.Result, kws []string) (string, bool) {
	for _, text := range r.Texts() {
		upper := strings.ToUpper(text)
		for _, kw := range kws {
			if strings.Contains(upper, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

// Validator runs whole-image OCR and checks for document keywords.
type Validator struct {
	region *ocr.Region
}

// New creates a validator using engine.
func New(engine ocr.Engine) *Validator {
	return &Validator{region: ocr.NewRegion(engine)}
}

// Check reports whether img looks like t and returns the OCR result it
// computed so callers can reuse it.
func (v *Validator) Check(ctx context.Context, img image.Image, t doctype.Type) (bool, ocr.Result, error) {
	kws, ok := keywords[t]
	if !ok {
		return false, nil, fmt.Errorf("%w: %q", doctype.ErrUnknown, t)
	}
	if img == nil {
		return false, nil, errors.New("input image is nil")
	}
	res, err := v.region.RecognizeImage(ctx, img)
	if err != nil {
		return false, nil, err
	}
	kw, found := FindKeyword(res, kws)
	slog.Debug("Document validation", "doctype", t, "lines", len(res.Texts()), "matched", found, "keyword", kw)
	return found, res, nil
}

// LooksLike reports whether img contains any keyword for t.
func (v *Validator) LooksLike(ctx context.Context, img image.Image, t doctype.Type) (bool, error) {
	ok, _, err := v.Check(ctx, img, t)
	return ok, err
}
