// Package paddle runs PP-OCR detection and recognition models through
// onnxruntime and exposes them as an ocr.Engine.
package paddle

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/crbook/internal/mempool"
	"github.com/MeKo-Tech/crbook/internal/models"
	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/MeKo-Tech/crbook/internal/utils"
	"github.com/disintegration/imaging"
)

// EngineName identifies this engine in errors and logs.
const EngineName = "paddle"

var (
	detMean = [3]float32{0.485, 0.456, 0.406}
	detStd  = [3]float32{0.229, 0.224, 0.225}
	recMean = [3]float32{0.5, 0.5, 0.5}
	recStd  = [3]float32{0.5, 0.5, 0.5}
)

// DetectOptions tunes DB post-processing.
type DetectOptions struct {
	Thresh      float32 `mapstructure:"thresh" yaml:"thresh" json:"thresh"`
	BoxThresh   float64 `mapstructure:"box_thresh" yaml:"box_thresh" json:"box_thresh"`
	UnclipRatio float64 `mapstructure:"unclip_ratio" yaml:"unclip_ratio" json:"unclip_ratio"`
	MinSize     int     `mapstructure:"min_size" yaml:"min_size" json:"min_size"`
	MaxSide     int     `mapstructure:"max_side" yaml:"max_side" json:"max_side"`
}

// Config holds the model locations and inference settings.
type Config struct {
	ModelsDir      string        `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	DetModelPath   string        `mapstructure:"det_model" yaml:"det_model" json:"det_model"`
	RecModelPath   string        `mapstructure:"rec_model" yaml:"rec_model" json:"rec_model"`
	DictPath       string        `mapstructure:"dict" yaml:"dict" json:"dict"`
	UseServerModel bool          `mapstructure:"use_server_model" yaml:"use_server_model" json:"use_server_model"`
	NumThreads     int           `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	RecHeight      int           `mapstructure:"rec_height" yaml:"rec_height" json:"rec_height"`
	RecMaxWidth    int           `mapstructure:"rec_max_width" yaml:"rec_max_width" json:"rec_max_width"`
	MinConfidence  float64       `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	Detect         DetectOptions `mapstructure:"detect" yaml:"detect" json:"detect"`
	GPU            GPUConfig     `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DefaultConfig returns PP-OCRv5 mobile settings.
func DefaultConfig() Config {
	return Config{
		RecHeight:     48,
		RecMaxWidth:   3200,
		MinConfidence: 0.5,
		Detect: DetectOptions{
			Thresh:      0.3,
			BoxThresh:   0.5,
			UnclipRatio: 1.5,
			MinSize:     3,
			MaxSide:     960,
		},
	}
}

// Resolve fills empty model paths from ModelsDir.
func (c *Config) Resolve() {
	if c.DetModelPath == "" {
		c.DetModelPath = models.GetDetectionModelPath(c.ModelsDir, c.UseServerModel)
	}
	if c.RecModelPath == "" {
		c.RecModelPath = models.GetRecognitionModelPath(c.ModelsDir, c.UseServerModel)
	}
	if c.DictPath == "" {
		c.DictPath = models.GetDictionaryPath(c.ModelsDir, models.DictionaryPPOCRKeysV1)
	}
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	if c.RecHeight <= 0 {
		return fmt.Errorf("rec_height must be positive, got %d", c.RecHeight)
	}
	if c.Detect.Thresh <= 0 || c.Detect.Thresh >= 1 {
		return fmt.Errorf("detect.thresh must be in (0,1), got %v", c.Detect.Thresh)
	}
	if c.Detect.BoxThresh < 0 || c.Detect.BoxThresh > 1 {
		return fmt.Errorf("detect.box_thresh must be in [0,1], got %v", c.Detect.BoxThresh)
	}
	if c.Detect.MaxSide < 32 {
		return fmt.Errorf("detect.max_side must be at least 32, got %d", c.Detect.MaxSide)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num_threads must be non-negative, got %d", c.NumThreads)
	}
	return c.GPU.Validate()
}

// Engine is a PP-OCR detection plus recognition engine.
type Engine struct {
	cfg     Config
	charset *Charset
	mu      sync.RWMutex
	det     *session
	rec     *session
}

// New loads the models described by cfg.
func New(cfg Config) (*Engine, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid paddle config: %w", err)
	}
	for _, p := range []string{cfg.DetModelPath, cfg.RecModelPath, cfg.DictPath} {
		if err := models.ValidateModelExists(p); err != nil {
			return nil, err
		}
	}
	charset, err := LoadCharset(cfg.DictPath)
	if err != nil {
		return nil, err
	}
	if err := initRuntime(cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	slog.Debug("Initializing paddle engine",
		"det_model", cfg.DetModelPath,
		"rec_model", cfg.RecModelPath,
		"dict_size", charset.Size(),
		"gpu_enabled", cfg.GPU.UseGPU)

	det, err := openSession(cfg.DetModelPath, cfg.NumThreads, cfg.GPU)
	if err != nil {
		return nil, err
	}
	rec, err := openSession(cfg.RecModelPath, cfg.NumThreads, cfg.GPU)
	if err != nil {
		_ = det.close()
		return nil, err
	}
	return &Engine{cfg: cfg, charset: charset, det: det, rec: rec}, nil
}

// Name implements ocr.Namer.
func (e *Engine) Name() string { return EngineName }

// Config returns the resolved configuration.
func (e *Engine) Config() Config { return e.cfg }

// Recognize detects text lines in img and recognizes each one.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (ocr.Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.det == nil || e.rec == nil {
		return nil, errors.New("paddle engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	rects, err := e.detect(img)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}

	page := make(ocr.Page, 0, len(rects))
	for _, r := range rects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, ok, err := e.recognizeLine(img, r)
		if err != nil {
			return nil, fmt.Errorf("recognition: %w", err)
		}
		if ok {
			page = append(page, line)
		}
	}
	slog.Debug("Paddle recognition finished",
		"regions", len(rects), "lines", len(page), "duration", time.Since(start))
	if len(page) == 0 {
		return nil, nil
	}
	return ocr.Result{page}, nil
}

func (e *Engine) detect(img image.Image) ([]image.Rectangle, error) {
	resized, err := utils.ResizeToMultiple(img, e.cfg.Detect.MaxSide, 32)
	if err != nil {
		return nil, err
	}
	data, w, h, err := utils.NormalizeNCHW(resized, detMean, detStd)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(data)

	prob, shape, err := e.det.run(data, 1, 3, int64(h), int64(w))
	if err != nil {
		return nil, err
	}
	if len(shape) != 4 {
		return nil, fmt.Errorf("expected 4D output tensor, got %dD", len(shape))
	}
	mapW, mapH := int(shape[3]), int(shape[2])
	boxes := boxesFromMap(prob, mapW, mapH, e.cfg.Detect)
	rects := toImageRects(boxes, mapW, mapH, img.Bounds())
	sortReadingOrder(rects, 10)
	return rects, nil
}

func (e *Engine) recognizeLine(img image.Image, r image.Rectangle) (ocr.TextLine, bool, error) {
	crop := imaging.Crop(img, r)
	line, width, err := utils.ResizeToHeight(crop, e.cfg.RecHeight, e.cfg.RecMaxWidth, 0)
	if err != nil {
		return ocr.TextLine{}, false, err
	}
	data, _, _, err := utils.NormalizeNCHW(line, recMean, recStd)
	if err != nil {
		return ocr.TextLine{}, false, err
	}
	defer mempool.PutFloat32(data)

	logits, shape, err := e.rec.run(data, 1, 3, int64(e.cfg.RecHeight), int64(width))
	if err != nil {
		return ocr.TextLine{}, false, err
	}
	seqs := decodeGreedy(logits, shape, 0)
	if len(seqs) == 0 {
		return ocr.TextLine{}, false, fmt.Errorf("unexpected recognition output shape %v", shape)
	}
	text := e.charset.Decode(seqs[0].Classes)
	conf := seqs[0].Confidence()
	if text == "" || conf < e.cfg.MinConfidence {
		return ocr.TextLine{}, false, nil
	}
	return ocr.TextLine{Text: text, Confidence: conf, Box: r}, true, nil
}

// Close releases both sessions. The onnxruntime environment stays up for
// the lifetime of the process.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := errors.Join(e.det.close(), e.rec.close())
	e.det, e.rec = nil, nil
	return err
}
