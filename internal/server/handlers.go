package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/crbook/internal/doctype"
)

// SessionCookie names the cookie that ties uploads to a browser session.
const SessionCookie = "crbook_session"

// healthHandler returns server health status and pipeline counters.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:   "healthy",
		Version:  s.version,
		Time:     time.Now().UTC().Format(time.RFC3339),
		DocTypes: s.docTypes(),
		Vision:   s.vision != nil,
	}
	for t, e := range s.extractors {
		if sr, ok := e.(statsReporter); ok {
			if response.Pipelines == nil {
				response.Pipelines = make(map[string]map[string]any)
			}
			response.Pipelines[string(t)] = sr.Stats()
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// docTypes lists the document types the server can process.
func (s *Server) docTypes() []doctype.Type {
	if s.vision != nil {
		return doctype.All()
	}
	out := make([]doctype.Type, 0, len(s.extractors))
	for _, t := range doctype.All() {
		if _, ok := s.extractors[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// pathDocType parses the {doctype} path value and writes a 404 when it is
// not served.
func (s *Server) pathDocType(w http.ResponseWriter, r *http.Request) (doctype.Type, bool) {
	t, err := doctype.Parse(r.PathValue("doctype"))
	if err != nil || !slices.Contains(s.docTypes(), t) {
		s.writeErrorResponse(w, "Unknown document type: "+r.PathValue("doctype"), http.StatusNotFound)
		return "", false
	}
	return t, true
}

// sessionID returns the session of the request, creating a cookie when the
// client has none.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// requestID honours an incoming X-Request-ID header.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return newRequestID()
}

func newRequestID() string { return uuid.NewString() }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ExtractResponse{Success: false, Error: message})
}
