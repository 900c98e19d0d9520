// Package tesseract adapts a Tesseract client to ocr.Engine. The real
// engine needs cgo and libtesseract and is compiled with -tags tesseract.
package tesseract

import (
	"errors"
	"fmt"
)

// EngineName identifies this engine in errors and logs.
const EngineName = "tesseract"

// ErrUnavailable is returned by New when built without the tesseract tag.
var ErrUnavailable = errors.New("tesseract engine not compiled in (build with -tags tesseract)")

// Config holds the Tesseract client settings.
type Config struct {
	Languages     []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	Whitelist     string   `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
	MinConfidence float64  `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	// DisableDictionary stops Tesseract from correcting plate and chassis
	// numbers into English words.
	DisableDictionary bool `mapstructure:"disable_dictionary" yaml:"disable_dictionary" json:"disable_dictionary"`
}

// DefaultConfig returns English with dictionary correction disabled.
func DefaultConfig() Config {
	return Config{
		Languages:         []string{"eng"},
		MinConfidence:     0.3,
		DisableDictionary: true,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if len(c.Languages) == 0 {
		return errors.New("at least one language is required")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", c.MinConfidence)
	}
	return nil
}
