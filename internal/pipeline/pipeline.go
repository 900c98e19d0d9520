// Package pipeline orchestrates document extraction: validation, outline
// detection, cropping and per-field region OCR for CR books, and whole-page
// field extraction for documents without a region registry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/frame"
	"github.com/MeKo-Tech/crbook/internal/linedetect"
	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/MeKo-Tech/crbook/internal/validator"
)

// FrameDetector finds the document outline in a photograph.
type FrameDetector interface {
	DetectFrame(ctx context.Context, img image.Image) (frame.Frame, error)
}

// DocumentValidator decides whether an image shows the expected document and
// returns the whole-image OCR it ran.
type DocumentValidator interface {
	Check(ctx context.Context, img image.Image, t doctype.Type) (bool, ocr.Result, error)
}

// Config holds the orchestrator settings.
type Config struct {
	DocType         doctype.Type
	MaxFieldWorkers int  // concurrent region OCR calls (0 = runtime.NumCPU())
	ExtendedFields  bool // add the page fields after the region fields
	LineDetect      linedetect.Config
}

// DefaultConfig returns the CR book defaults.
func DefaultConfig() Config {
	return Config{
		DocType:         doctype.CRBook,
		MaxFieldWorkers: runtime.NumCPU(),
		LineDetect:      linedetect.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := doctype.Parse(string(c.DocType)); err != nil {
		return err
	}
	if c.MaxFieldWorkers < 0 {
		return fmt.Errorf("max field workers must be >= 0, got %d", c.MaxFieldWorkers)
	}
	return c.LineDetect.Validate()
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	engine     ocr.Engine
	detector   FrameDetector
	validator  DocumentValidator
	registry   fields.Registry
	pageFields []fields.PageField
	observers  []StateObserver
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder {
	return &Builder{
		cfg:        DefaultConfig(),
		registry:   fields.CRBookRegistry(),
		pageFields: fields.CRBookPageFields(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithEngine sets the OCR engine used for validation and field zones.
func (b *Builder) WithEngine(e ocr.Engine) *Builder {
	b.engine = e
	return b
}

// WithDetector overrides the line detector built from the config.
func (b *Builder) WithDetector(d FrameDetector) *Builder {
	b.detector = d
	return b
}

// WithValidator overrides the keyword validator.
func (b *Builder) WithValidator(v DocumentValidator) *Builder {
	b.validator = v
	return b
}

// WithRegistry sets the region fields. An empty registry turns the pipeline
// into a page pipeline: no outline detection, only page fields.
func (b *Builder) WithRegistry(r fields.Registry) *Builder {
	b.registry = r
	return b
}

// WithPageFields sets the full-page fields used when extended fields are on.
func (b *Builder) WithPageFields(pf []fields.PageField) *Builder {
	if pf != nil {
		b.pageFields = pf
	}
	return b
}

// WithObserver adds a state observer.
func (b *Builder) WithObserver(o StateObserver) *Builder {
	if o != nil {
		b.observers = append(b.observers, o)
	}
	return b
}

// WithMaxFieldWorkers bounds concurrent region OCR calls.
func (b *Builder) WithMaxFieldWorkers(n int) *Builder {
	if n >= 0 {
		b.cfg.MaxFieldWorkers = n
	}
	return b
}

// WithExtendedFields enables the full-page fields.
func (b *Builder) WithExtendedFields(enabled bool) *Builder {
	b.cfg.ExtendedFields = enabled
	return b
}

// WithDocType sets the document type checked by the validator.
func (b *Builder) WithDocType(t doctype.Type) *Builder {
	b.cfg.DocType = t
	return b
}

// WithLineDetectConfig sets the detector configuration.
func (b *Builder) WithLineDetectConfig(cfg linedetect.Config) *Builder {
	b.cfg.LineDetect = cfg
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the builder state without building.
func (b *Builder) Validate() error {
	if b.engine == nil {
		return errors.New("ocr engine is required")
	}
	if len(b.registry) == 0 && len(b.pageFields) == 0 {
		return errors.New("no fields to extract")
	}
	return b.cfg.Validate()
}

// Build creates the pipeline. The pipeline takes ownership of the engine.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	det := b.detector
	if det == nil && len(b.registry) > 0 {
		d, err := linedetect.New(b.cfg.LineDetect)
		if err != nil {
			return nil, fmt.Errorf("create line detector: %w", err)
		}
		det = d
	}
	val := b.validator
	if val == nil {
		val = validator.New(b.engine)
	}

	workers := b.cfg.MaxFieldWorkers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return &Pipeline{
		cfg:        b.cfg,
		workers:    workers,
		engine:     b.engine,
		region:     ocr.NewRegion(b.engine),
		detector:   det,
		validator:  val,
		registry:   append(fields.Registry(nil), b.registry...),
		pageFields: append([]fields.PageField(nil), b.pageFields...),
		observers:  append([]StateObserver(nil), b.observers...),
		profiler:   &Profiler{},
	}, nil
}

// Pipeline runs the extraction state machine. It is safe for concurrent use
// when its engine is.
type Pipeline struct {
	cfg        Config
	workers    int
	engine     ocr.Engine
	region     *ocr.Region
	detector   FrameDetector
	validator  DocumentValidator
	registry   fields.Registry
	pageFields []fields.PageField
	observers  []StateObserver
	profiler   *Profiler
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// EngineName returns the name of the OCR engine.
func (p *Pipeline) EngineName() string { return ocr.EngineName(p.engine) }

// usePageFields reports whether page fields are part of the output. Page
// pipelines always use them.
func (p *Pipeline) usePageFields() bool {
	return p.cfg.ExtendedFields || len(p.registry) == 0
}

// FieldNames lists the output fields in order.
func (p *Pipeline) FieldNames() []string {
	names := p.registry.Names()
	if p.usePageFields() {
		for _, pf := range p.pageFields {
			names = append(names, pf.Name)
		}
	}
	return names
}

// Stats returns cumulative processing counters.
func (p *Pipeline) Stats() map[string]any { return p.profiler.Snapshot() }

// Close releases the OCR engine.
func (p *Pipeline) Close() error {
	if p == nil || p.engine == nil {
		return nil
	}
	return p.engine.Close()
}
