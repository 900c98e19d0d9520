package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/testutil"
)

// fakeExtractor returns a fixed result or error and records its input.
type fakeExtractor struct {
	result *pipeline.Result
	err    error

	mu       sync.Mutex
	received [][]byte
	closed   bool
	closeErr error
}

func (f *fakeExtractor) Process(ctx context.Context, data []byte) (*pipeline.Result, error) {
	f.mu.Lock()
	f.received = append(f.received, data)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeExtractor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeExtractor) Stats() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]any{"processed": len(f.received)}
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

// fakeVision answers every type with the same fields.
type fakeVision struct {
	entries []pipeline.FieldEntry
	err     error
}

func (f *fakeVision) Extract(_ context.Context, t doctype.Type, _ []byte) (*pipeline.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{DocType: t, Status: pipeline.StatusOK, Fields: f.entries}, nil
}

func crbookResult(regNo string) *pipeline.Result {
	reg := fields.Absent
	if regNo != "" {
		reg = fields.Text(regNo)
	}
	return &pipeline.Result{
		DocType:     doctype.CRBook,
		Status:      pipeline.StatusOK,
		ImageBase64: "aW1n",
		Fields: []pipeline.FieldEntry{
			{Name: fields.RegistrationNumberField, Value: reg},
			{Name: fields.ChassisNumberField, Value: fields.Text("MA3FJF12S00123456")},
			{Name: fields.EngineNumberField, Value: fields.Absent},
		},
	}
}

func rejectedResult(t doctype.Type) *pipeline.Result {
	return &pipeline.Result{
		DocType: t,
		Status:  pipeline.StatusNotExpectedDocument,
		Fields:  []pipeline.FieldEntry{{Name: fields.RegistrationNumberField, Value: fields.Absent}},
	}
}

// newTestServer builds a server with a CR book extractor and optional
// configuration tweaks.
func newTestServer(t *testing.T, ext Extractor, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Extractors: map[doctype.Type]Extractor{doctype.CRBook: ext},
		Version:    "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// multipartBody encodes one file field plus extra form values.
func multipartBody(t *testing.T, field, filename string, data []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func uploadRequest(t *testing.T, target, field string, data []byte, values map[string]string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, field, "doc.png", data, values)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func outlinePNG(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.DrawOutline(testutil.DefaultOutlineSpec()))
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}
