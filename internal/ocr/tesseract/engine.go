//go:build tesseract

package tesseract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/MeKo-Tech/crbook/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// Engine wraps a single gosseract client. The client is not reentrant, so
// calls are serialized; use ocr.Pool for parallelism.
type Engine struct {
	cfg    Config
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a client configured by cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tesseract config: %w", err)
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	if cfg.DisableDictionary {
		_ = client.SetVariable("load_system_dawg", "false")
		_ = client.SetVariable("load_freq_dawg", "false")
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &Engine{cfg: cfg, client: client}, nil
}

// Name implements ocr.Namer.
func (e *Engine) Name() string { return EngineName }

// Recognize returns one text line per Tesseract text line.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (ocr.Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := utils.EncodeImage(img, "png")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, errors.New("tesseract engine is closed")
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("get text lines: %w", err)
	}

	origin := img.Bounds().Min
	page := make(ocr.Page, 0, len(boxes))
	for _, b := range boxes {
		text := strings.Join(strings.Fields(b.Word), " ")
		conf := b.Confidence / 100
		if text == "" || conf < e.cfg.MinConfidence {
			continue
		}
		page = append(page, ocr.TextLine{Text: text, Confidence: conf, Box: b.Box.Add(origin)})
	}
	if len(page) == 0 {
		return nil, nil
	}
	return ocr.Result{page}, nil
}

// Close releases the client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
