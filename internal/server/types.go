package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
)

// Extraction methods accepted by /process and /extract.
const (
	MethodLocal  = "local"
	MethodVision = "vision"
)

// Extractor runs the local pipeline for one document type.
type Extractor interface {
	Process(ctx context.Context, data []byte) (*pipeline.Result, error)
	Close() error
}

// VisionExtractor reads a document with a vision model.
type VisionExtractor interface {
	Extract(ctx context.Context, t doctype.Type, data []byte) (*pipeline.Result, error)
}

// statsReporter is implemented by extractors that keep processing counters.
type statsReporter interface {
	Stats() map[string]any
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	extractors    map[doctype.Type]Extractor
	vision        VisionExtractor
	store         Store
	rateLimiter   *RateLimiter
	corsOrigin    string
	maxUploadMB   int64
	timeout       time.Duration
	defaultMethod string
	includeImage  bool
	version       string
}

// Config holds server configuration.
type Config struct {
	Host          string
	Port          int
	CORSOrigin    string
	MaxUploadMB   int64
	TimeoutSec    int
	DefaultMethod string
	IncludeImage  bool
	Version       string

	// Extractors maps document types to local pipelines. Types without an
	// entry can only be processed with the vision method.
	Extractors map[doctype.Type]Extractor
	// Vision is optional; without it method=vision is rejected.
	Vision VisionExtractor
	// Store keeps staged uploads; nil selects an in-memory store with a
	// 30 minute TTL.
	Store Store
	// RateLimiter is optional.
	RateLimiter *RateLimiter
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string                    `json:"status"`
	Version   string                    `json:"version,omitempty"`
	Time      string                    `json:"time"`
	DocTypes  []doctype.Type            `json:"doctypes"`
	Vision    bool                      `json:"vision"`
	Pipelines map[string]map[string]any `json:"pipelines,omitempty"`
}

// UploadResponse is returned by /upload and /clear.
type UploadResponse struct {
	Success   bool         `json:"success"`
	DocType   doctype.Type `json:"doctype"`
	Staged    bool         `json:"staged"`
	Size      int          `json:"size,omitempty"`
	ImageData string       `json:"image_data,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// ExtractResponse wraps the extraction output of /process and /extract.
type ExtractResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	*pipeline.Output
}

// NewServer creates a new extraction server instance.
func NewServer(config Config) (*Server, error) {
	if len(config.Extractors) == 0 && config.Vision == nil {
		return nil, errors.New("at least one extractor or a vision model is required")
	}
	for t, e := range config.Extractors {
		if _, err := doctype.Parse(string(t)); err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("nil extractor for %s", t)
		}
	}

	method := config.DefaultMethod
	switch method {
	case "":
		method = MethodLocal
		if len(config.Extractors) == 0 {
			method = MethodVision
		}
	case MethodLocal, MethodVision:
	default:
		return nil, fmt.Errorf("invalid default method %q", method)
	}

	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 20
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	store := config.Store
	if store == nil {
		store = NewMemoryStore(30 * time.Minute)
	}

	return &Server{
		extractors:    config.Extractors,
		vision:        config.Vision,
		store:         store,
		rateLimiter:   config.RateLimiter,
		corsOrigin:    config.CORSOrigin,
		maxUploadMB:   maxUpload,
		timeout:       timeout,
		defaultMethod: method,
		includeImage:  config.IncludeImage,
		version:       config.Version,
	}, nil
}

// Close releases the pipelines and the upload store.
func (s *Server) Close() error {
	var errs []error
	for t, e := range s.extractors {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pipeline: %w", t, err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close upload store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/upload/{doctype}", s.corsMiddleware(s.rateLimitMiddleware(s.uploadHandler)))
	mux.HandleFunc("/process/{doctype}", s.corsMiddleware(s.rateLimitMiddleware(s.processHandler)))
	mux.HandleFunc("/clear/{doctype}", s.corsMiddleware(s.clearHandler))
	mux.HandleFunc("/extract", s.corsMiddleware(s.rateLimitMiddleware(s.extractHandler)))
	mux.HandleFunc("GET /ws", s.extractWebSocketHandler)
}
