// Package vision extracts document fields with a hosted or local vision
// language model. It is an alternative to the local OCR pipeline and
// produces the same Result shape.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
	"github.com/MeKo-Tech/crbook/internal/utils"
)

var (
	// ErrNoJSON is returned when the model answer holds no JSON object.
	ErrNoJSON = errors.New("no JSON object in model response")
	// ErrEmptyResponse is returned when the model produced no choices.
	ErrEmptyResponse = errors.New("empty model response")
)

// Oracle asks a vision model to read a document image.
type Oracle struct {
	llm         llms.Model
	provider    string
	model       string
	maxTokens   int
	temperature float64
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithProvider sets the provider name; it selects the image encoding.
func WithProvider(name string) Option {
	return func(o *Oracle) { o.provider = strings.ToLower(name) }
}

// WithModelName records the model name for logging.
func WithModelName(name string) Option {
	return func(o *Oracle) { o.model = name }
}

// WithMaxTokens caps the answer length.
func WithMaxTokens(n int) Option {
	return func(o *Oracle) { o.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Oracle) { o.temperature = t }
}

// New wraps a langchaingo model.
func New(llm llms.Model, opts ...Option) *Oracle {
	o := &Oracle{
		llm:         llm,
		provider:    ProviderOpenAI,
		maxTokens:   1500,
		temperature: 0.1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Provider returns the configured provider name.
func (o *Oracle) Provider() string { return o.provider }

// Extract reads the fields of a document type from image bytes.
func (o *Oracle) Extract(ctx context.Context, t doctype.Type, data []byte) (*pipeline.Result, error) {
	start := time.Now()
	prompt, err := Prompt(t)
	if err != nil {
		return nil, err
	}
	_, meta, err := utils.DecodeImage(data)
	if err != nil {
		return nil, &pipeline.PhaseError{Phase: pipeline.Received, Kind: pipeline.InvalidImage, Err: err}
	}

	logger := slog.With("provider", o.provider, "model", o.model, "doctype", t)
	logger.Debug("Sending request to vision model", "bytes", len(data))

	var callOpts []llms.CallOption
	if o.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.maxTokens))
	}
	callOpts = append(callOpts, llms.WithTemperature(o.temperature))

	resp, err := o.llm.GenerateContent(ctx, []llms.MessageContent{{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt), o.imagePart(data)},
	}}, callOpts...)
	if err != nil {
		logger.Error("Vision model request failed", "error", err)
		return nil, fmt.Errorf("vision model: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	entries, err := ParseAnswer(resp.Choices[0].Content)
	if err != nil {
		logger.Warn("Unreadable vision model answer", "error", err)
		return nil, err
	}
	entries = arrange(entries, promptFields(t))

	res := &pipeline.Result{
		DocType:     t,
		Status:      pipeline.StatusOK,
		Fields:      entries,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		Width:       meta.Width,
		Height:      meta.Height,
	}
	if res.Found() == 0 {
		res.Status = pipeline.StatusNotExpectedDocument
	}
	res.Timings.Total = time.Since(start)
	logger.Info("Vision extraction finished", "found", res.Found(), "status", res.Status, "duration", res.Timings.Total)
	return res, nil
}

// imagePart encodes the image the way the provider expects: OpenAI style
// APIs take a data URL, the others raw bytes.
func (o *Oracle) imagePart(data []byte) llms.ContentPart {
	mime := http.DetectContentType(data)
	switch o.provider {
	case ProviderOpenAI, ProviderMistral:
		return llms.ImageURLPart("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
	default:
		return llms.BinaryPart(mime, data)
	}
}

// ParseAnswer slices the JSON object out of a model answer (first '{' to
// last '}') and returns its members in document order with title-cased
// names. Nulls become absent values.
func ParseAnswer(text string) ([]pipeline.FieldEntry, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}

	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	var out []pipeline.FieldEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode answer: unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode answer %q: %w", key, err)
		}
		v, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode answer %q: %w", key, err)
		}
		out = append(out, pipeline.FieldEntry{Name: TitleKey(key), Value: v})
	}
	return out, nil
}

func toValue(raw json.RawMessage) (fields.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fields.Absent, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return fields.Absent, err
	}
	switch d := v.(type) {
	case string:
		if strings.TrimSpace(d) == "" || strings.EqualFold(d, "null") {
			return fields.Absent, nil
		}
		return fields.Text(d), nil
	case json.Number:
		f, err := d.Float64()
		if err != nil {
			return fields.Text(d.String()), nil
		}
		return fields.Number(f), nil
	case bool:
		return fields.Structured(d), nil
	case []any:
		if len(d) == 0 {
			return fields.Absent, nil
		}
		return fields.Structured(d), nil
	default:
		return fields.Structured(d), nil
	}
}

// TitleKey turns a snake_case key into a display name:
// "cr_book_number" becomes "Cr Book Number".
func TitleKey(key string) string {
	return cases.Title(language.Und).String(strings.Join(strings.Fields(strings.ReplaceAll(key, "_", " ")), " "))
}

// arrange orders entries like the prompt; keys the prompt asked for but the
// model left out are absent, unexpected keys follow in answer order.
func arrange(entries []pipeline.FieldEntry, want []promptField) []pipeline.FieldEntry {
	byName := make(map[string]fields.Value, len(entries))
	for _, e := range entries {
		byName[e.Name] = e.Value
	}
	out := make([]pipeline.FieldEntry, 0, len(want)+len(entries))
	used := make(map[string]bool, len(want))
	for _, f := range want {
		name := TitleKey(f.Key)
		used[name] = true
		out = append(out, pipeline.FieldEntry{Name: name, Value: byName[name]})
	}
	for _, e := range entries {
		if !used[e.Name] {
			used[e.Name] = true
			out = append(out, e)
		}
	}
	return out
}
