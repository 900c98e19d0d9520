//go:build !gocv

package linedetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_GoCVBackendNotCompiled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendGoCV

	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
