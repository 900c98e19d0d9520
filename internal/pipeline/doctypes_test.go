package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/licence"
	"github.com/MeKo-Tech/crbook/internal/ocr/ocrtest"
	"github.com/MeKo-Tech/crbook/internal/passport"
)

func TestForDocType(t *testing.T) {
	tests := []struct {
		dt    doctype.Type
		names []string
	}{
		{doctype.CRBook, fields.CRBookRegistry().Names()},
		{doctype.Licence, licence.FieldNames()},
		{doctype.Passport, passport.FieldNames()},
	}
	for _, tt := range tests {
		t.Run(string(tt.dt), func(t *testing.T) {
			b, err := ForDocType(tt.dt)
			require.NoError(t, err)
			p, err := b.WithEngine(ocrtest.New()).Build()
			require.NoError(t, err)
			assert.Equal(t, tt.dt, p.Config().DocType)
			assert.Equal(t, tt.names, p.FieldNames())
		})
	}

	_, err := ForDocType(doctype.Type("invoice"))
	require.ErrorIs(t, err, doctype.ErrUnknown)
}

func TestForDocType_LicencePipeline(t *testing.T) {
	engine := ocrtest.New().On(pageBounds, "DRIVING LICENCE", "5.B1234567")
	b, err := ForDocType(doctype.Licence)
	require.NoError(t, err)
	p, err := b.WithEngine(engine).Build()
	require.NoError(t, err)

	res, err := p.Process(context.Background(), outlinePNG(t))
	require.NoError(t, err)
	assert.Equal(t, licence.FieldNames(), namesOf(res.Fields))
	v, _ := res.Field(licence.LicenceNumberField)
	assert.True(t, v.Found)
	assert.Len(t, engine.Calls(), 1, "page pipelines reuse the validation OCR")
}
