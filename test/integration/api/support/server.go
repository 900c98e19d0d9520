package support

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/ocr/ocrtest"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/server"
	"github.com/MeKo-Tech/crbook/internal/testutil"
)

// licencePage is what the scripted engine reads on the test outline.
var licencePage = []string{"DRIVING LICENCE", "5.B1234567", "4d.851234567V"}

// StubExtractor stands in for the CR book pipeline, whose region reads
// cannot be scripted from a single page.
type StubExtractor struct {
	mu        sync.Mutex
	result    *pipeline.Result
	processed int
}

// SetRegistration makes the stub read a CR book with the given registration
// number. An empty number leaves the field unmatched.
func (s *StubExtractor) SetRegistration(regNo string) {
	reg := fields.Absent
	if regNo != "" {
		reg = fields.Text(regNo)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &pipeline.Result{
		DocType: doctype.CRBook,
		Status:  pipeline.StatusOK,
		Fields: []pipeline.FieldEntry{
			{Name: fields.RegistrationNumberField, Value: reg},
			{Name: fields.ChassisNumberField, Value: fields.Text("MA3FJF12S00123456")},
			{Name: fields.EngineNumberField, Value: fields.Absent},
		},
	}
}

// Process returns the configured result.
func (s *StubExtractor) Process(ctx context.Context, data []byte) (*pipeline.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	if s.result == nil {
		return nil, &pipeline.PhaseError{Phase: pipeline.FrameDetected, Kind: pipeline.OutlineNotDetected, Err: fmt.Errorf("no outline in %d bytes", len(data))}
	}
	return s.result, nil
}

// Close implements server.Extractor.
func (s *StubExtractor) Close() error { return nil }

// Stats reports how many images were processed.
func (s *StubExtractor) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{"processed": s.processed}
}

// StubVision answers every document type with the same fields.
type StubVision struct {
	Entries []pipeline.FieldEntry
}

// Extract implements server.VisionExtractor.
func (v *StubVision) Extract(_ context.Context, t doctype.Type, _ []byte) (*pipeline.Result, error) {
	return &pipeline.Result{DocType: t, Status: pipeline.StatusOK, Fields: v.Entries}, nil
}

// scriptedPipeline builds the real pipeline of t over an engine that reads
// the test outline as a driving licence.
func scriptedPipeline(t doctype.Type) (*pipeline.Pipeline, error) {
	b, err := pipeline.ForDocType(t)
	if err != nil {
		return nil, err
	}
	engine := ocrtest.New().On(image.Rect(0, 0, 500, 500), licencePage...)
	return b.WithEngine(engine).Build()
}

// StartServer serves the API from an httptest server. Licence and passport
// run their real pipelines on the scripted engine; the CR book uses the stub.
func (testCtx *TestContext) StartServer(withVision bool) error {
	if testCtx.HTTPServer != nil {
		return nil
	}
	extractors := map[doctype.Type]server.Extractor{doctype.CRBook: testCtx.CRBook}
	for _, t := range []doctype.Type{doctype.Licence, doctype.Passport} {
		p, err := scriptedPipeline(t)
		if err != nil {
			return fmt.Errorf("failed to build %s pipeline: %w", t, err)
		}
		extractors[t] = p
	}

	cfg := server.Config{
		CORSOrigin: "*",
		TimeoutSec: 10,
		Version:    "integration",
		Extractors: extractors,
	}
	if withVision {
		testCtx.Vision = &StubVision{}
		cfg.Vision = testCtx.Vision
	}
	srv, err := server.NewServer(cfg)
	if err != nil {
		for _, e := range extractors {
			_ = e.Close()
		}
		return fmt.Errorf("failed to create server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPServer = httptest.NewServer(mux)
	testCtx.closeAPI = srv.Close
	return nil
}

// StopServer shuts the httptest server down and releases the pipelines.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPServer == nil {
		return nil
	}
	testCtx.HTTPServer.Close()
	testCtx.HTTPServer = nil
	if testCtx.closeAPI == nil {
		return nil
	}
	err := testCtx.closeAPI()
	testCtx.closeAPI = nil
	return err
}

// outlinePhoto encodes the default test outline as PNG.
func outlinePhoto() ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, testutil.DrawOutline(testutil.DefaultOutlineSpec()), imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
