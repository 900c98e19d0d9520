package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/vision"
)

const (
	formatJSON = "json"
	formatText = "text"
	formatCSV  = "csv"
)

// errMethodUnavailable is returned when the requested method has no backend.
var errMethodUnavailable = errors.New("extraction method not available")

// requiredFields must be present for an extraction to count as a valid
// document of its type.
var requiredFields = map[doctype.Type][]string{
	doctype.CRBook:   {"Registration Number"},
	doctype.Licence:  {"Licence Number", "Nic Number"},
	doctype.Passport: {"Passport Number", "Nic Number"},
}

var invalidMessages = map[doctype.Type]string{
	doctype.CRBook:   "Upload valid CR book image",
	doctype.Licence:  "Upload valid Driving Licence image",
	doctype.Passport: "Upload valid Passport image",
}

// RequestConfig holds per-request options.
type RequestConfig struct {
	Method       string
	Format       string
	IncludeImage bool
}

// Validate checks the request options.
func (c *RequestConfig) Validate() error {
	switch c.Method {
	case MethodLocal, MethodVision:
	default:
		return fmt.Errorf("invalid method %q (must be %s or %s)", c.Method, MethodLocal, MethodVision)
	}
	switch c.Format {
	case formatJSON, formatText, formatCSV:
	default:
		return fmt.Errorf("invalid format %q (must be json, text or csv)", c.Format)
	}
	return nil
}

func (s *Server) parseRequestConfig(r *http.Request) (*RequestConfig, error) {
	cfg := &RequestConfig{
		Method:       strings.ToLower(r.FormValue("method")),
		Format:       strings.ToLower(r.FormValue("format")),
		IncludeImage: s.includeImage,
	}
	if cfg.Method == "" {
		cfg.Method = s.defaultMethod
	}
	if cfg.Format == "" {
		cfg.Format = formatJSON
	}
	if v := r.FormValue("include_image"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid include_image %q", v)
		}
		cfg.IncludeImage = b
	}
	return cfg, cfg.Validate()
}

// parseImageRequest reads the uploaded image from the "<doctype>_image" or
// "image" form field.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request, t doctype.Type) ([]byte, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, err
	}

	file, header, err := r.FormFile(string(t) + "_image")
	if err != nil {
		file, header, err = r.FormFile("image")
	}
	if err != nil {
		s.writeErrorResponse(w, "No file field found in form", http.StatusBadRequest)
		return nil, err
	}
	defer func() { _ = file.Close() }()

	if header.Filename == "" {
		s.writeErrorResponse(w, "No file selected", http.StatusBadRequest)
		return nil, errors.New("empty filename")
	}
	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, errors.New("file too large")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, err
	}
	if len(data) == 0 {
		s.writeErrorResponse(w, "Empty file", http.StatusBadRequest)
		return nil, errors.New("empty file")
	}
	uploadSizeBytes.Observe(float64(len(data)))
	return data, nil
}

// uploadHandler stages an image for the session.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t, ok := s.pathDocType(w, r)
	if !ok {
		return
	}
	data, err := s.parseImageRequest(w, r, t)
	if err != nil {
		return // error already written
	}

	session := sessionID(w, r)
	if err := s.store.Put(r.Context(), session, t, data); err != nil {
		slog.Error("Failed to stage upload", "doctype", t, "error", err)
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	slog.Info("Staged upload", "doctype", t, "bytes", len(data))

	resp := UploadResponse{Success: true, DocType: t, Staged: true, Size: len(data)}
	if s.includeImage {
		resp.ImageData = base64.StdEncoding.EncodeToString(data)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// processHandler extracts the staged image of the session.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t, ok := s.pathDocType(w, r)
	if !ok {
		return
	}
	cfg, err := s.parseRequestConfig(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := s.store.Get(r.Context(), sessionID(w, r), t)
	if errors.Is(err, ErrNotStaged) {
		s.writeErrorResponse(w, fmt.Sprintf("No %s image uploaded", t), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, "Failed to load upload", http.StatusInternalServerError)
		return
	}

	s.extractAndRespond(w, r, t, cfg, data)
}

// clearHandler drops the staged image of the session.
func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t, ok := s.pathDocType(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), sessionID(w, r), t); err != nil {
		s.writeErrorResponse(w, "Failed to clear upload", http.StatusInternalServerError)
		return
	}
	slog.Info("Cleared upload", "doctype", t)
	s.writeJSON(w, http.StatusOK, UploadResponse{Success: true, DocType: t})
}

// extractHandler uploads and extracts in one request. The document type
// comes from the "doctype" parameter and defaults to the CR book.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("doctype")
	t := doctype.CRBook
	if name != "" {
		parsed, err := doctype.Parse(name)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		t = parsed
	}
	data, err := s.parseImageRequest(w, r, t)
	if err != nil {
		return
	}
	cfg, err := s.parseRequestConfig(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.extractAndRespond(w, r, t, cfg, data)
}

func (s *Server) extractAndRespond(w http.ResponseWriter, r *http.Request, t doctype.Type, cfg *RequestConfig, data []byte) {
	rid := requestID(r)
	w.Header().Set("X-Request-ID", rid)

	res, err := s.extract(r.Context(), t, cfg.Method, data)
	if err != nil {
		slog.Warn("Extraction failed", "request_id", rid, "doctype", t, "method", cfg.Method, "error", err)
		status, kind := errorStatus(err)
		s.writeJSON(w, status, ExtractResponse{
			RequestID: rid,
			Method:    cfg.Method,
			Error:     err.Error(),
			ErrorKind: kind,
		})
		return
	}

	out, err := pipeline.NewOutput(res, cfg.IncludeImage)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msg, invalid := validateResult(res); invalid {
		extractionsTotal.WithLabelValues(string(t), cfg.Method, "invalid").Inc()
		out.ExtractedInfo = pipeline.Info{Entries: []pipeline.FieldEntry{{Name: "Error", Value: fields.Text(msg)}}}
		res = &pipeline.Result{DocType: res.DocType, Status: pipeline.StatusOK, Fields: out.ExtractedInfo.Entries}
	}

	switch cfg.Format {
	case formatText:
		s.writeFormatted(w, "text/plain; charset=utf-8", pipeline.ToText, res)
	case formatCSV:
		s.writeFormatted(w, "text/csv", pipeline.ToCSV, res)
	default:
		s.writeJSON(w, http.StatusOK, ExtractResponse{
			Success:   true,
			RequestID: rid,
			Method:    cfg.Method,
			Output:    out,
		})
	}
}

func (s *Server) writeFormatted(w http.ResponseWriter, contentType string, format func(*pipeline.Result) (string, error), res *pipeline.Result) {
	body, err := format(res)
	if err != nil {
		http.Error(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write([]byte(body))
}

// extract runs the selected method with the server timeout and records
// metrics.
func (s *Server) extract(ctx context.Context, t doctype.Type, method string, data []byte) (*pipeline.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var (
		res *pipeline.Result
		err error
	)
	switch method {
	case MethodVision:
		if s.vision == nil {
			err = fmt.Errorf("%w: %s", errMethodUnavailable, method)
			break
		}
		res, err = s.vision.Extract(ctx, t, data)
	default:
		e, ok := s.extractors[t]
		if !ok {
			err = fmt.Errorf("%w: %s for %s", errMethodUnavailable, method, t)
			break
		}
		res, err = e.Process(ctx, data)
	}
	if err != nil {
		extractionsTotal.WithLabelValues(string(t), method, "error").Inc()
		return nil, err
	}

	extractionDuration.WithLabelValues(string(t), method).Observe(time.Since(start).Seconds())
	extractionsTotal.WithLabelValues(string(t), method, string(res.Status)).Inc()
	fieldsFound.WithLabelValues(string(t), method).Observe(float64(res.Found()))
	return res, nil
}

// validateResult applies the per-type presence check. Rejected documents
// always fail it.
func validateResult(res *pipeline.Result) (string, bool) {
	msg := invalidMessages[res.DocType]
	if res.Rejected() {
		return msg, true
	}
	for _, name := range requiredFields[res.DocType] {
		if v, ok := res.Field(name); !ok || !v.Found {
			return msg, true
		}
	}
	return "", false
}

// errorStatus maps an extraction error to an HTTP status and kind.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errMethodUnavailable):
		return http.StatusBadRequest, "method_unavailable"
	case errors.Is(err, doctype.ErrUnknown):
		return http.StatusBadRequest, "unknown_doctype"
	case errors.Is(err, vision.ErrNoJSON), errors.Is(err, vision.ErrEmptyResponse):
		return http.StatusBadGateway, "vision_response"
	}
	kind := pipeline.KindOf(err)
	switch kind {
	case pipeline.InvalidImage:
		return http.StatusBadRequest, string(kind)
	case pipeline.OutlineNotDetected:
		return http.StatusUnprocessableEntity, string(kind)
	case pipeline.OcrEngineFailure:
		return http.StatusBadGateway, string(kind)
	case pipeline.Canceled:
		return http.StatusGatewayTimeout, string(kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, string(pipeline.Canceled)
	}
	return http.StatusInternalServerError, string(kind)
}
