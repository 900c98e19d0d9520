package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/vision"
)

func TestServer_UploadProcessClearFlow(t *testing.T) {
	ext := &fakeExtractor{result: crbookResult("WP1234")}
	s := newTestServer(t, ext, func(c *Config) { c.IncludeImage = true })
	mux := newTestMux(s)
	img := []byte("png-bytes")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "/upload/crbook", "crbook_image", img, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	up := decodeJSON(t, w)
	assert.Equal(t, true, up["staged"])
	assert.Equal(t, "crbook", up["doctype"])
	assert.Equal(t, "cG5nLWJ5dGVz", up["image_data"])
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	session := cookies[0]

	process := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/process/crbook", nil)
		req.AddCookie(session)
		req.Header.Set("X-Request-ID", "req-1")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w = process()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	res := decodeJSON(t, w)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "local", res["method"])
	assert.Equal(t, "aW1n", res["image_data"])
	info := res["extracted_info"].(map[string]any)
	assert.Equal(t, "WP1234", info["Registration Number"])
	assert.Equal(t, pipeline.NoMatch, info["Engine Number"])
	require.Equal(t, 1, ext.calls())
	assert.Equal(t, img, ext.received[0])

	req := httptest.NewRequest(http.MethodPost, "/clear/crbook", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = process()
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No crbook image uploaded", decodeJSON(t, w)["error"])
}

func TestServer_ProcessIsolatesSessions(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{result: crbookResult("WP1234")}, nil)
	mux := newTestMux(s)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "/upload/crbook", "crbook_image", []byte("a"), nil))
	require.Equal(t, http.StatusOK, w.Code)

	// No cookie: a fresh session has nothing staged.
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/process/crbook", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ParseImageRequest_Errors(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{result: crbookResult("WP1234")}, nil)
	mux := newTestMux(s)

	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		status  int
		message string
	}{
		{
			name: "no file field",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/upload/crbook", "", nil, map[string]string{"other": "x"})
			},
			status:  http.StatusBadRequest,
			message: "No file field found in form",
		},
		{
			name: "empty file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/upload/crbook", "crbook_image", nil, nil)
			},
			status:  http.StatusBadRequest,
			message: "Empty file",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload/crbook", nil)
			},
			status:  http.StatusBadRequest,
			message: "Failed to parse form data",
		},
		{
			name: "unknown doctype",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/upload/invoice", "image", []byte("x"), nil)
			},
			status:  http.StatusNotFound,
			message: "Unknown document type: invoice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, tt.req(t))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeJSON(t, w)["error"])
		})
	}
}

func TestServer_ExtractHandler(t *testing.T) {
	ext := &fakeExtractor{result: crbookResult("WP1234")}
	s := newTestServer(t, ext, nil)
	mux := newTestMux(s)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := decodeJSON(t, w)
	assert.Equal(t, "crbook", m["doctype"])
	assert.NotContains(t, m, "image_data")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	t.Run("doctype without pipeline", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, uploadRequest(t, "/extract?doctype=licence", "licence_image", []byte("img"), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "method_unavailable", decodeJSON(t, w)["error_kind"])
	})

	t.Run("unknown doctype", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, uploadRequest(t, "/extract?doctype=invoice", "image", []byte("img"), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("include image", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), map[string]string{"include_image": "true"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "aW1n", decodeJSON(t, w)["image_data"])
	})
}

func TestServer_ExtractInvalidDocument(t *testing.T) {
	tests := []struct {
		name   string
		result *pipeline.Result
	}{
		{"required field missing", crbookResult("")},
		{"rejected by validator", rejectedResult(doctype.CRBook)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeExtractor{result: tt.result}, nil)
			w := httptest.NewRecorder()
			newTestMux(s).ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), nil))

			require.Equal(t, http.StatusOK, w.Code)
			info := decodeJSON(t, w)["extracted_info"].(map[string]any)
			assert.Equal(t, map[string]any{"Error": "Upload valid CR book image"}, info)
		})
	}
}

func TestServer_ExtractFormats(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{result: crbookResult("WP1234")}, nil)
	mux := newTestMux(s)

	t.Run("text", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), map[string]string{"format": "text"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t,
			"Registration Number: WP1234\nChassis Number: MA3FJF12S00123456\nEngine Number: "+pipeline.NoMatch,
			w.Body.String())
	})

	t.Run("csv", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), map[string]string{"format": "CSV"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "field,value,found\n")
		assert.Contains(t, w.Body.String(), "Registration Number,WP1234,true\n")
	})

	t.Run("invalid document as text", func(t *testing.T) {
		s := newTestServer(t, &fakeExtractor{result: rejectedResult(doctype.CRBook)}, nil)
		w := httptest.NewRecorder()
		newTestMux(s).ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), map[string]string{"format": "text"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Error: Upload valid CR book image", w.Body.String())
	})

	t.Run("invalid format", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), map[string]string{"format": "xml"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeJSON(t, w)["error"], "invalid format")
	})
}

func TestServer_ExtractVisionMethod(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		s := newTestServer(t, &fakeExtractor{result: crbookResult("WP1234")}, nil)
		w := httptest.NewRecorder()
		newTestMux(s).ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), map[string]string{"method": "vision"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "method_unavailable", decodeJSON(t, w)["error_kind"])
	})

	t.Run("vision answers", func(t *testing.T) {
		ext := &fakeExtractor{result: crbookResult("WP1234")}
		vis := &fakeVision{entries: []pipeline.FieldEntry{
			{Name: "Passport Number", Value: fields.Text("N1234567")},
			{Name: "Nic Number", Value: fields.Text("851234567V")},
		}}
		s := newTestServer(t, ext, func(c *Config) { c.Vision = vis })
		w := httptest.NewRecorder()
		newTestMux(s).ServeHTTP(w, uploadRequest(t, "/extract?doctype=passport", "passport_image", []byte("img"),
			map[string]string{"method": "vision"}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		m := decodeJSON(t, w)
		assert.Equal(t, "vision", m["method"])
		assert.Equal(t, "passport", m["doctype"])
		assert.Equal(t, "N1234567", m["extracted_info"].(map[string]any)["Passport Number"])
		assert.Zero(t, ext.calls())
	})

	t.Run("vision without json", func(t *testing.T) {
		s := newTestServer(t, &fakeExtractor{}, func(c *Config) { c.Vision = &fakeVision{err: vision.ErrNoJSON} })
		w := httptest.NewRecorder()
		newTestMux(s).ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), map[string]string{"method": "vision"}))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestServer_ExtractPipelineError(t *testing.T) {
	perr := &pipeline.PhaseError{Phase: pipeline.FrameDetected, Kind: pipeline.OutlineNotDetected, Err: errors.New("no lines")}
	s := newTestServer(t, &fakeExtractor{err: perr}, nil)
	w := httptest.NewRecorder()
	newTestMux(s).ServeHTTP(w, uploadRequest(t, "/extract", "image", []byte("img"), nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	m := decodeJSON(t, w)
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "outline_not_detected", m["error_kind"])
	assert.NotContains(t, m, "extracted_info")
}

func TestErrorStatus(t *testing.T) {
	phase := func(kind pipeline.ErrorKind) error {
		return fmt.Errorf("process: %w", &pipeline.PhaseError{Phase: pipeline.Received, Kind: kind, Err: errors.New("x")})
	}
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"method unavailable", fmt.Errorf("%w: vision", errMethodUnavailable), http.StatusBadRequest, "method_unavailable"},
		{"unknown doctype", doctype.ErrUnknown, http.StatusBadRequest, "unknown_doctype"},
		{"vision no json", vision.ErrNoJSON, http.StatusBadGateway, "vision_response"},
		{"vision empty", fmt.Errorf("call: %w", vision.ErrEmptyResponse), http.StatusBadGateway, "vision_response"},
		{"invalid image", phase(pipeline.InvalidImage), http.StatusBadRequest, "invalid_image"},
		{"outline", phase(pipeline.OutlineNotDetected), http.StatusUnprocessableEntity, "outline_not_detected"},
		{"ocr failure", phase(pipeline.OcrEngineFailure), http.StatusBadGateway, "ocr_engine_failure"},
		{"canceled", phase(pipeline.Canceled), http.StatusGatewayTimeout, "canceled"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "canceled"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestValidateResult(t *testing.T) {
	licence := func(number, nic fields.Value) *pipeline.Result {
		return &pipeline.Result{DocType: doctype.Licence, Status: pipeline.StatusOK, Fields: []pipeline.FieldEntry{
			{Name: "Licence Number", Value: number},
			{Name: "Nic Number", Value: nic},
		}}
	}
	tests := []struct {
		name    string
		res     *pipeline.Result
		invalid bool
		msg     string
	}{
		{"crbook ok", crbookResult("WP1234"), false, ""},
		{"crbook missing", crbookResult(""), true, "Upload valid CR book image"},
		{"licence ok", licence(fields.Text("B1234567"), fields.Text("851234567V")), false, ""},
		{"licence missing nic", licence(fields.Text("B1234567"), fields.Absent), true, "Upload valid Driving Licence image"},
		{"passport rejected", rejectedResult(doctype.Passport), true, "Upload valid Passport image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, invalid := validateResult(tt.res)
			assert.Equal(t, tt.invalid, invalid)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestRequestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RequestConfig
		wantErr bool
	}{
		{"local json", RequestConfig{Method: MethodLocal, Format: formatJSON}, false},
		{"vision csv", RequestConfig{Method: MethodVision, Format: formatCSV}, false},
		{"bad method", RequestConfig{Method: "cloud", Format: formatJSON}, true},
		{"bad format", RequestConfig{Method: MethodLocal, Format: "yaml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServer_ParseRequestConfig(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{}, func(c *Config) { c.IncludeImage = true })

	cfg, err := s.parseRequestConfig(httptest.NewRequest(http.MethodPost, "/extract", nil))
	require.NoError(t, err)
	assert.Equal(t, &RequestConfig{Method: MethodLocal, Format: formatJSON, IncludeImage: true}, cfg)

	cfg, err = s.parseRequestConfig(httptest.NewRequest(http.MethodPost, "/extract?format=Text&include_image=0", nil))
	require.NoError(t, err)
	assert.Equal(t, formatText, cfg.Format)
	assert.False(t, cfg.IncludeImage)

	_, err = s.parseRequestConfig(httptest.NewRequest(http.MethodPost, "/extract?include_image=maybe", nil))
	assert.Error(t, err)
}
