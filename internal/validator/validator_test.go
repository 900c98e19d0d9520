package validator

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/MeKo-Tech/crbook/internal/ocr/ocrtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLike(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 80))
	tests := []struct {
		name  string
		texts []string
		dt    doctype.Type
		want  bool
	}{
		{"cr book keyword", []string{"Certificate of", "Registration"}, doctype.CRBook, true},
		{"lower case fuel", []string{"fuel type"}, doctype.CRBook, true},
		{"no keyword", []string{"INVOICE", "TOTAL"}, doctype.CRBook, false},
		{"licence", []string{"DRIVING LICENCE"}, doctype.Licence, true},
		{"passport mrz", []string{"P<LKAPERERA<<KAMAL"}, doctype.Passport, true},
		{"passport on licence", []string{"PASSPORT"}, doctype.Licence, false},
		{"empty ocr", nil, doctype.CRBook, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := ocrtest.New()
			eng.Default = ocr.NewResult(tt.texts...)
			ok, err := New(eng).LooksLike(context.Background(), img, tt.dt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Len(t, eng.Calls(), 1)
		})
	}
}

func TestCheck_ReturnsResult(t *testing.T) {
	eng := ocrtest.New()
	eng.Default = ocr.NewResult("CHASSIS NO", "MA3FJF12S00123456")
	ok, res, err := New(eng).Check(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)), doctype.CRBook)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"CHASSIS NO", "MA3FJF12S00123456"}, res.Texts())
}

func TestLooksLike_Errors(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))

	eng := ocrtest.New()
	eng.Err = errors.New("model crashed")
	_, err := New(eng).LooksLike(context.Background(), img, doctype.CRBook)
	assert.ErrorIs(t, err, ocr.ErrEngineFailure)

	_, err = New(ocrtest.New()).LooksLike(context.Background(), img, doctype.Type("invoice"))
	assert.ErrorIs(t, err, doctype.ErrUnknown)

	_, err = New(ocrtest.New()).LooksLike(context.Background(), nil, doctype.CRBook)
	assert.Error(t, err)
}

func TestKeywords(t *testing.T) {
	kws := Keywords(doctype.CRBook)
	assert.Len(t, kws, 8)
	kws[0] = "changed"
	assert.Equal(t, "REGISTRATION", Keywords(doctype.CRBook)[0])
	assert.Empty(t, Keywords(doctype.Type("x")))
}
