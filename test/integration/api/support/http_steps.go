package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

func (testCtx *TestContext) url(endpoint string) (string, error) {
	if testCtx.HTTPServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPServer.URL + endpoint, nil
}

// do sends the request and records the response.
func (testCtx *TestContext) do(req *http.Request) error {
	start := time.Now()
	resp, err := testCtx.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	testCtx.LastDuration = time.Since(start)
	testCtx.LastStatusCode = resp.StatusCode
	testCtx.LastBody = body
	testCtx.LastHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) request(method, endpoint string) error {
	target, err := testCtx.url(endpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// upload posts the current photo as the "image" form field plus form values.
func (testCtx *TestContext) upload(endpoint string, values map[string]string) error {
	if testCtx.Photo == nil {
		return errors.New("no photo prepared")
	}
	target, err := testCtx.url(endpoint)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", testCtx.PhotoName)
	if err != nil {
		return err
	}
	if _, err := part.Write(testCtx.Photo); err != nil {
		return err
	}
	for k, v := range values {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iUploadThePhotoTo(endpoint string) error {
	return testCtx.upload(endpoint, nil)
}

func (testCtx *TestContext) iUploadThePhotoToWith(endpoint string, table *godog.Table) error {
	values := make(map[string]string)
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return errors.New("form table rows need a name and a value")
		}
		values[row.Cells[0].Value] = row.Cells[1].Value
	}
	return testCtx.upload(endpoint, values)
}

func (testCtx *TestContext) iPOST(endpoint string) error {
	return testCtx.request(http.MethodPost, endpoint)
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.request(http.MethodGet, endpoint)
}

func (testCtx *TestContext) iSendAnOPTIONSRequestTo(endpoint string) error {
	return testCtx.request(http.MethodOptions, endpoint)
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, testCtx.LastStatusCode, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) responseJSON() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(testCtx.LastBody, &m); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w\n%s", err, testCtx.LastBody)
	}
	return m, nil
}

// lookup walks a dotted path such as "extracted_info.Registration Number".
func (testCtx *TestContext) lookup(path string) (any, bool, error) {
	m, err := testCtx.responseJSON()
	if err != nil {
		return nil, false, err
	}
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("%q is not an object at %q", path, key)
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	_, err := testCtx.responseJSON()
	return err
}

func (testCtx *TestContext) theJSONFieldShouldBe(path, expected string) error {
	v, ok, err := testCtx.lookup(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("field %q not found in %s", path, testCtx.LastBody)
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field %q: expected %q, got %q", path, expected, got)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldBeNull(path string) error {
	v, ok, err := testCtx.lookup(path)
	if err != nil {
		return err
	}
	if !ok || v != nil {
		return fmt.Errorf("field %q: expected null, got %v (present=%t)", path, v, ok)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldBeAbsent(path string) error {
	v, ok, err := testCtx.lookup(path)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("field %q: expected absent, got %v", path, v)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldNotBeEmpty(path string) error {
	v, ok, err := testCtx.lookup(path)
	if err != nil {
		return err
	}
	if !ok || v == nil || v == "" {
		return fmt.Errorf("field %q is empty in %s", path, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) theExtractedFieldShouldBe(name, expected string) error {
	return testCtx.theJSONFieldShouldBe("extracted_info."+name, expected)
}

func (testCtx *TestContext) theExtractedFieldsShouldBeInOrder(table *godog.Table) error {
	// Field order only survives in the raw body.
	body := string(testCtx.LastBody)
	last := -1
	for _, row := range table.Rows {
		key := fmt.Sprintf("%q:", row.Cells[0].Value)
		idx := strings.Index(body, key)
		if idx < 0 {
			return fmt.Errorf("field %s not found in %s", key, body)
		}
		if idx < last {
			return fmt.Errorf("field %s is out of order", key)
		}
		last = idx
	}
	return nil
}

func (testCtx *TestContext) theResponseBodyShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastBody), text) {
		return fmt.Errorf("expected body to contain %q, got %s", text, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) theHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s: expected %q, got %q", name, expected, got)
	}
	return nil
}

func (testCtx *TestContext) theHeaderShouldStartWith(name, prefix string) error {
	if got := testCtx.LastHeaders.Get(name); !strings.HasPrefix(got, prefix) {
		return fmt.Errorf("header %s: expected prefix %q, got %q", name, prefix, got)
	}
	return nil
}

func (testCtx *TestContext) theHeaderShouldNotBeEmpty(name string) error {
	if testCtx.LastHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}

func (testCtx *TestContext) theHealthCheckShouldListTheDocumentType(name string) error {
	m, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	raw, _ := m["doctypes"].([]any)
	types := make([]string, 0, len(raw))
	for _, t := range raw {
		types = append(types, fmt.Sprint(t))
	}
	if !slices.Contains(types, name) {
		return fmt.Errorf("doctype %q not in %v", name, types)
	}
	return nil
}

// RegisterHTTPSteps registers request and response steps.
func (testCtx *TestContext) RegisterHTTPSteps(sc *godog.ScenarioContext) {
	// Requests
	sc.Step(`^I upload the photo to "([^"]*)"$`, testCtx.iUploadThePhotoTo)
	sc.Step(`^I upload the photo to "([^"]*)" with:$`, testCtx.iUploadThePhotoToWith)
	sc.Step(`^I POST "([^"]*)"$`, testCtx.iPOST)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I send an OPTIONS request to "([^"]*)"$`, testCtx.iSendAnOPTIONSRequestTo)

	// Responses
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be null$`, testCtx.theJSONFieldShouldBeNull)
	sc.Step(`^the JSON field "([^"]*)" should be absent$`, testCtx.theJSONFieldShouldBeAbsent)
	sc.Step(`^the JSON field "([^"]*)" should not be empty$`, testCtx.theJSONFieldShouldNotBeEmpty)
	sc.Step(`^the extracted field "([^"]*)" should be "([^"]*)"$`, testCtx.theExtractedFieldShouldBe)
	sc.Step(`^the extracted fields should be in order:$`, testCtx.theExtractedFieldsShouldBeInOrder)
	sc.Step(`^the response body should contain "([^"]*)"$`, testCtx.theResponseBodyShouldContain)
	sc.Step(`^the header "([^"]*)" should be "([^"]*)"$`, testCtx.theHeaderShouldBe)
	sc.Step(`^the header "([^"]*)" should start with "([^"]*)"$`, testCtx.theHeaderShouldStartWith)
	sc.Step(`^the header "([^"]*)" should not be empty$`, testCtx.theHeaderShouldNotBeEmpty)
	sc.Step(`^the health check should list the document type "([^"]*)"$`, testCtx.theHealthCheckShouldListTheDocumentType)
}
