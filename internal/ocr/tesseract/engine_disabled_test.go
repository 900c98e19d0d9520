//go:build !tesseract

package tesseract

import (
	"context"
	"image"
	"testing"

	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/stretchr/testify/assert"
)

var _ ocr.Engine = (*Engine)(nil)

func TestNew_Unavailable(t *testing.T) {
	e, err := New(DefaultConfig())
	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrUnavailable)

	var stub Engine
	_, err = stub.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, EngineName, stub.Name())
	assert.NoError(t, stub.Close())
}
