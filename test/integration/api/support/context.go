package support

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"time"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// In-process server
	HTTPServer *httptest.Server
	Client     *http.Client
	CRBook     *StubExtractor
	Vision     *StubVision
	closeAPI   func() error

	// Photo used by the next upload
	Photo     []byte
	PhotoName string

	// HTTP response state
	LastStatusCode int
	LastBody       []byte
	LastHeaders    http.Header
	LastDuration   time.Duration

	TempDir string
}

// NewTestContext creates a context with a fresh cookie jar and temp dir.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "crbook-api-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &TestContext{
		Client:  &http.Client{Jar: jar, Timeout: 30 * time.Second},
		CRBook:  &StubExtractor{},
		TempDir: tempDir,
	}, nil
}

// Cleanup stops the server and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}
