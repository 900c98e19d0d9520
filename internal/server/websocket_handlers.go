package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketExtractRequest asks for one extraction over the socket. The image
// travels base64 encoded in JSON.
type WebSocketExtractRequest struct {
	Type         string `json:"type"` // "extract"
	DocType      string `json:"doctype"`
	Method       string `json:"method,omitempty"`
	Image        []byte `json:"image"`
	IncludeImage bool   `json:"include_image,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketExtractResponse reports progress and the final result.
type WebSocketExtractResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	State     string  `json:"state,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// stateProgress maps pipeline states to a progress fraction.
var stateProgress = map[pipeline.State]float64{
	pipeline.Received:        0.1,
	pipeline.Validated:       0.3,
	pipeline.FrameDetected:   0.5,
	pipeline.Cropped:         0.6,
	pipeline.FieldsExtracted: 0.9,
}

// lockedWriter serializes writes; pipeline observers may run on another
// goroutine than the read loop.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// extractWebSocketHandler upgrades the connection and serves extraction
// requests with progress updates.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	out := &lockedWriter{conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, out, data)
		}
	}
}

// handleWebSocketMessage processes one request message.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Type != "extract" {
		s.sendWebSocketError(conn, "", "invalid_request", "Unsupported request type: "+req.Type)
		return
	}
	t, err := doctype.Parse(req.DocType)
	if err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", err.Error())
		return
	}
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "", "invalid_request", "No image data provided")
		return
	}
	method := strings.ToLower(req.Method)
	if method == "" {
		method = s.defaultMethod
	}
	if method != MethodLocal && method != MethodVision {
		s.sendWebSocketError(conn, "", "invalid_request", "Unsupported method: "+req.Method)
		return
	}

	rid := newRequestID()
	s.sendWebSocketResponse(conn, WebSocketExtractResponse{
		Type:      "extract_response",
		Status:    "processing",
		RequestID: rid,
	})

	observer := pipeline.ObserverFunc(func(e pipeline.Event) {
		p, ok := stateProgress[e.State]
		if !ok {
			return
		}
		s.sendWebSocketResponse(conn, WebSocketExtractResponse{
			Type:      "extract_response",
			Status:    "processing",
			State:     string(e.State),
			Progress:  p,
			RequestID: rid,
		})
	})

	res, err := s.extract(pipeline.ObserveContext(ctx, observer), t, method, req.Image)
	if err != nil {
		_, kind := errorStatus(err)
		s.sendWebSocketError(conn, rid, kind, err.Error())
		return
	}
	output, err := pipeline.NewOutput(res, req.IncludeImage)
	if err != nil {
		s.sendWebSocketError(conn, rid, "internal", err.Error())
		return
	}
	if msg, invalid := validateResult(res); invalid {
		s.sendWebSocketError(conn, rid, "invalid_document", msg)
		return
	}

	s.sendWebSocketResponse(conn, WebSocketExtractResponse{
		Type:      "extract_response",
		Status:    "completed",
		State:     string(pipeline.Done),
		Progress:  1.0,
		Result:    output,
		RequestID: rid,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketExtractResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketExtractResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
