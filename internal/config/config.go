package config

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/linedetect"
	"github.com/MeKo-Tech/crbook/internal/models"
	"github.com/MeKo-Tech/crbook/internal/ocr/paddle"
	"github.com/MeKo-Tech/crbook/internal/ocr/tesseract"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/vision"
)

// OCR engine names.
const (
	EnginePaddle    = "paddle"
	EngineTesseract = "tesseract"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	ld := linedetect.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		OCR: OCRConfig{
			Engine:    EnginePaddle,
			PoolSize:  1,
			Paddle:    paddle.DefaultConfig(),
			Tesseract: tesseract.DefaultConfig(),
		},
		Pipeline: PipelineConfig{
			MaxFieldWorkers: 0, // runtime.NumCPU()
			LineDetect: LineDetectConfig{
				Backend:           ld.Backend,
				KernelDivisor:     ld.KernelDivisor,
				MorphIterations:   ld.MorphIterations,
				DenoiseKernel:     ld.DenoiseKernel,
				HoughThreshold:    ld.Hough.Threshold,
				HoughMinLength:    ld.Hough.MinLength,
				HoughMaxGap:       ld.Hough.MaxGap,
				ClusterTolerance:  ld.ClusterTolerance,
				MinLengthRatio:    ld.MinLengthRatio,
				VerticalEdgeRatio: ld.VerticalEdgeRatio,
				HorizontalEdgeGap: ld.HorizontalEdgeGap,
			},
		},
		Output: OutputConfig{
			Format: "json",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       20,
			TimeoutSec:        60,
			ShutdownTimeout:   10,
			SessionTTLMin:     30,
			DefaultMethod:     "local",
			IncludeImage:      true,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     500 * 1024 * 1024,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "crbook:upload:",
			},
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Vision: vision.DefaultConfig(),
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	switch c.OCR.Engine {
	case EnginePaddle:
		if err := c.OCR.Paddle.Validate(); err != nil {
			return fmt.Errorf("invalid ocr.paddle: %w", err)
		}
	case EngineTesseract:
		if err := c.OCR.Tesseract.Validate(); err != nil {
			return fmt.Errorf("invalid ocr.tesseract: %w", err)
		}
	default:
		return fmt.Errorf("invalid ocr engine: %s (must be one of: %s, %s)", c.OCR.Engine, EnginePaddle, EngineTesseract)
	}
	if c.OCR.PoolSize <= 0 {
		return fmt.Errorf("invalid ocr pool size: %d (must be positive)", c.OCR.PoolSize)
	}

	if c.Pipeline.MaxFieldWorkers < 0 {
		return fmt.Errorf("invalid max field workers: %d (must not be negative)", c.Pipeline.MaxFieldWorkers)
	}
	if err := c.ToLineDetectConfig().Validate(); err != nil {
		return fmt.Errorf("invalid pipeline.line_detect: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.SessionTTLMin <= 0 {
		return fmt.Errorf("invalid session ttl: %d (must be positive)", c.Server.SessionTTLMin)
	}
	if !contains([]string{"local", "vision"}, c.Server.DefaultMethod) {
		return fmt.Errorf("invalid default method: %s (must be local or vision)", c.Server.DefaultMethod)
	}
	if c.Server.Redis.Enabled && c.Server.Redis.Addr == "" {
		return fmt.Errorf("redis staging is enabled but server.redis.addr is empty")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if err := c.Vision.Validate(); err != nil {
		return fmt.Errorf("invalid vision config: %w", err)
	}
	return nil
}

// ToLineDetectConfig converts to linedetect.Config.
func (c *Config) ToLineDetectConfig() linedetect.Config {
	cfg := linedetect.DefaultConfig()
	ld := c.Pipeline.LineDetect
	cfg.Backend = ld.Backend
	cfg.KernelDivisor = ld.KernelDivisor
	cfg.MorphIterations = ld.MorphIterations
	cfg.DenoiseKernel = ld.DenoiseKernel
	cfg.Hough.Threshold = ld.HoughThreshold
	cfg.Hough.MinLength = ld.HoughMinLength
	cfg.Hough.MaxGap = ld.HoughMaxGap
	cfg.ClusterTolerance = ld.ClusterTolerance
	cfg.MinLengthRatio = ld.MinLengthRatio
	cfg.VerticalEdgeRatio = ld.VerticalEdgeRatio
	cfg.HorizontalEdgeGap = ld.HorizontalEdgeGap
	return cfg
}

// ToPipelineConfig converts to the orchestrator configuration for a
// document type.
func (c *Config) ToPipelineConfig(t doctype.Type) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.DocType = t
	cfg.MaxFieldWorkers = c.Pipeline.MaxFieldWorkers
	cfg.ExtendedFields = c.Pipeline.ExtendedFields
	cfg.LineDetect = c.ToLineDetectConfig()
	return cfg
}

// ToPaddleConfig returns the paddle settings with the global models
// directory applied when none is set.
func (c *Config) ToPaddleConfig() paddle.Config {
	cfg := c.OCR.Paddle
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = c.ModelsDir
	}
	return cfg
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
