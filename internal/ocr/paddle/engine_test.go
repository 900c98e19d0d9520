package paddle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/crbook/internal/models"
	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ocr.Engine = (*Engine)(nil)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero rec height", func(c *Config) { c.RecHeight = 0 }, true},
		{"thresh too high", func(c *Config) { c.Detect.Thresh = 1 }, true},
		{"box thresh negative", func(c *Config) { c.Detect.BoxThresh = -0.1 }, true},
		{"max side too small", func(c *Config) { c.Detect.MaxSide = 16 }, true},
		{"confidence above one", func(c *Config) { c.MinConfidence = 1.5 }, true},
		{"negative threads", func(c *Config) { c.NumThreads = -1 }, true},
		{"bad gpu device", func(c *Config) { c.GPU = GPUConfig{UseGPU: true, DeviceID: -1} }, true},
		{"bad arena strategy", func(c *Config) { c.GPU = GPUConfig{UseGPU: true, ArenaExtendStrategy: "x"} }, true},
		{"gpu ok", func(c *Config) { c.GPU = GPUConfig{UseGPU: true, ArenaExtendStrategy: "kSameAsRequested"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConfigResolve(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ModelsDir = dir
	cfg.Resolve()
	assert.Equal(t, filepath.Join(dir, models.DetectionMobile), cfg.DetModelPath)
	assert.Equal(t, filepath.Join(dir, models.RecognitionMobile), cfg.RecModelPath)
	assert.Equal(t, filepath.Join(dir, models.DictionaryPPOCRKeysV1), cfg.DictPath)

	cfg = DefaultConfig()
	cfg.DetModelPath = "/x/det.onnx"
	cfg.ModelsDir = dir
	cfg.Resolve()
	assert.Equal(t, "/x/det.onnx", cfg.DetModelPath)
}

func TestNew_MissingModels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = t.TempDir()
	_, err := New(cfg)
	assert.ErrorIs(t, err, models.ErrModelNotFound)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecHeight = -1
	_, err := New(cfg)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrModelNotFound)
}

// TestNew_WithModels runs only where the PP-OCR models and onnxruntime are installed.
func TestNew_WithModels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	for _, p := range []string{cfg.DetModelPath, cfg.RecModelPath, cfg.DictPath} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("model not available: %s", p)
		}
	}
	eng, err := New(cfg)
	if err != nil {
		t.Skipf("onnxruntime not available: %v", err)
	}
	require.NotNil(t, eng)
	assert.Equal(t, EngineName, eng.Name())
	assert.NoError(t, eng.Close())
	assert.NoError(t, eng.Close())
}
