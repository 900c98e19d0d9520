package config

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/MeKo-Tech/crbook/internal/ocr/paddle"
	"github.com/MeKo-Tech/crbook/internal/ocr/tesseract"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
)

// EngineFactory returns a constructor for the configured OCR engine.
func (c *Config) EngineFactory() (ocr.Factory, error) {
	switch c.OCR.Engine {
	case EnginePaddle:
		pc := c.ToPaddleConfig()
		return func() (ocr.Engine, error) { return paddle.New(pc) }, nil
	case EngineTesseract:
		tc := c.OCR.Tesseract
		return func() (ocr.Engine, error) { return tesseract.New(tc) }, nil
	}
	return nil, fmt.Errorf("invalid ocr engine: %s", c.OCR.Engine)
}

// NewEngine creates the OCR engine, pooled when PoolSize is above one.
func (c *Config) NewEngine() (ocr.Engine, error) {
	factory, err := c.EngineFactory()
	if err != nil {
		return nil, err
	}
	if c.OCR.PoolSize <= 1 {
		return factory()
	}
	slog.Debug("Creating OCR engine pool", "engine", c.OCR.Engine, "size", c.OCR.PoolSize)
	return ocr.NewPool(c.OCR.PoolSize, factory)
}

// NewPipeline builds the extraction pipeline for a document type around a
// fresh engine. The pipeline owns the engine.
func (c *Config) NewPipeline(t doctype.Type) (*pipeline.Pipeline, error) {
	engine, err := c.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", c.OCR.Engine, err)
	}
	p, err := c.NewPipelineWithEngine(t, engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return p, nil
}

// NewPipelineWithEngine builds the pipeline for t around engine.
func (c *Config) NewPipelineWithEngine(t doctype.Type, engine ocr.Engine) (*pipeline.Pipeline, error) {
	b, err := pipeline.ForDocType(t)
	if err != nil {
		return nil, err
	}
	return b.WithConfig(c.ToPipelineConfig(t)).WithEngine(engine).Build()
}
