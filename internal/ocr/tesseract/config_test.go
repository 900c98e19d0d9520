package tesseract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Languages = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MinConfidence = 2
	assert.Error(t, cfg.Validate())
}
