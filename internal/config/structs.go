//nolint:lll
package config

import (
	"github.com/MeKo-Tech/crbook/internal/ocr/paddle"
	"github.com/MeKo-Tech/crbook/internal/ocr/tesseract"
	"github.com/MeKo-Tech/crbook/internal/vision"
)

// Config represents the complete configuration of the crbook application.
// It covers every command (extract, licence, passport, vision, serve) and is
// loaded from configuration files, environment variables and flags.
type Config struct {
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Vision   vision.Config  `mapstructure:"vision" yaml:"vision" json:"vision"`
}

// OCRConfig selects the text recognition engine.
type OCRConfig struct {
	Engine string `mapstructure:"engine" yaml:"engine" json:"engine"`
	// PoolSize is the number of engine instances; 1 shares a single engine.
	PoolSize  int              `mapstructure:"pool_size" yaml:"pool_size" json:"pool_size"`
	Paddle    paddle.Config    `mapstructure:"paddle" yaml:"paddle" json:"paddle"`
	Tesseract tesseract.Config `mapstructure:"tesseract" yaml:"tesseract" json:"tesseract"`
}

// PipelineConfig contains the orchestrator settings.
type PipelineConfig struct {
	MaxFieldWorkers int              `mapstructure:"max_field_workers" yaml:"max_field_workers" json:"max_field_workers"`
	ExtendedFields  bool             `mapstructure:"extended_fields" yaml:"extended_fields" json:"extended_fields"`
	LineDetect      LineDetectConfig `mapstructure:"line_detect" yaml:"line_detect" json:"line_detect"`
}

// LineDetectConfig mirrors linedetect.Config with file friendly names.
type LineDetectConfig struct {
	Backend           string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	KernelDivisor     int     `mapstructure:"kernel_divisor" yaml:"kernel_divisor" json:"kernel_divisor"`
	MorphIterations   int     `mapstructure:"morph_iterations" yaml:"morph_iterations" json:"morph_iterations"`
	DenoiseKernel     int     `mapstructure:"denoise_kernel" yaml:"denoise_kernel" json:"denoise_kernel"`
	HoughThreshold    int     `mapstructure:"hough_threshold" yaml:"hough_threshold" json:"hough_threshold"`
	HoughMinLength    int     `mapstructure:"hough_min_length" yaml:"hough_min_length" json:"hough_min_length"`
	HoughMaxGap       int     `mapstructure:"hough_max_gap" yaml:"hough_max_gap" json:"hough_max_gap"`
	ClusterTolerance  int     `mapstructure:"cluster_tolerance" yaml:"cluster_tolerance" json:"cluster_tolerance"`
	MinLengthRatio    float64 `mapstructure:"min_length_ratio" yaml:"min_length_ratio" json:"min_length_ratio"`
	VerticalEdgeRatio float64 `mapstructure:"vertical_edge_ratio" yaml:"vertical_edge_ratio" json:"vertical_edge_ratio"`
	HorizontalEdgeGap int     `mapstructure:"horizontal_edge_gap" yaml:"horizontal_edge_gap" json:"horizontal_edge_gap"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	IncludeImage bool   `mapstructure:"include_image" yaml:"include_image" json:"include_image"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	SessionTTLMin   int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min" json:"session_ttl_min"`
	DefaultMethod   string `mapstructure:"default_method" yaml:"default_method" json:"default_method"`
	IncludeImage    bool   `mapstructure:"include_image" yaml:"include_image" json:"include_image"`

	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// RedisConfig points the upload staging store at Redis. When disabled,
// uploads are kept in process memory.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Addr      string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password  string `mapstructure:"password" yaml:"password" json:"password"`
	DB        int    `mapstructure:"db" yaml:"db" json:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

// BatchConfig contains settings for multi-image extraction.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
