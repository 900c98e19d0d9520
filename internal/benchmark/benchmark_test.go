package benchmark

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
)

type countingExtractor struct {
	calls  int
	failAt int // 1-based call that fails; 0 never fails
}

func (c *countingExtractor) Process(ctx context.Context, _ []byte) (*pipeline.Result, error) {
	c.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.failAt > 0 && c.calls == c.failAt {
		return nil, errors.New("engine down")
	}
	return &pipeline.Result{
		DocType: doctype.CRBook,
		Status:  pipeline.StatusOK,
		Fields: []pipeline.FieldEntry{
			{Name: fields.RegistrationNumberField, Value: fields.Text("CAB-1234")},
			{Name: fields.EngineNumberField, Value: fields.Absent},
		},
	}, nil
}

func TestSummarize(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name string
		in   []time.Duration
		want Stats
	}{
		{"empty", nil, Stats{}},
		{"single", []time.Duration{5 * ms}, Stats{Min: 5 * ms, Max: 5 * ms, Mean: 5 * ms, P50: 5 * ms, P95: 5 * ms}},
		{
			"unsorted",
			[]time.Duration{40 * ms, 10 * ms, 30 * ms, 20 * ms},
			Stats{Min: 10 * ms, Max: 40 * ms, Mean: 25 * ms, P50: 20 * ms, P95: 40 * ms},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.in))
		})
	}
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	in := []time.Duration{3, 1, 2}
	Summarize(in)
	assert.Equal(t, []time.Duration{3, 1, 2}, in)
}

func TestRunner_Run(t *testing.T) {
	ext := &countingExtractor{}
	r := &Runner{Extractor: ext, Iterations: 5, Warmup: 2}

	res, err := r.Run(context.Background(), "book.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 7, ext.calls)
	assert.Equal(t, 5, res.Runs)
	assert.Equal(t, pipeline.StatusOK, res.Status)
	assert.Equal(t, 1, res.FieldsFound)
	assert.NoError(t, res.Err)
	assert.LessOrEqual(t, res.Stats.Min, res.Stats.Max)
	assert.Contains(t, res.String(), "book.png: 5 runs")
}

func TestRunner_Errors(t *testing.T) {
	_, err := (&Runner{Iterations: 1}).Run(context.Background(), "x", nil)
	require.Error(t, err)

	_, err = (&Runner{Extractor: &countingExtractor{}}).Run(context.Background(), "x", nil)
	require.Error(t, err)

	res, err := (&Runner{Extractor: &countingExtractor{failAt: 3}, Iterations: 5}).Run(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Runs, "the series stops at the first failure")
	require.Error(t, res.Err)
	assert.Contains(t, res.String(), "ERROR - engine down")

	res, err = (&Runner{Extractor: &countingExtractor{failAt: 1}, Iterations: 5, Warmup: 1}).Run(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Runs)
	assert.Error(t, res.Err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Runner{Extractor: &countingExtractor{}, Iterations: 2}).Run(ctx, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	results := []Result{
		{Name: "a.png", Runs: 2, Stats: Stats{Mean: 1500 * time.Microsecond}, Status: pipeline.StatusOK, FieldsFound: 3},
		{Name: "b.png", Err: errors.New("boom")},
	}
	require.NoError(t, WriteCSV(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "image,runs,mean_ms"))
	assert.Equal(t, "a.png,2,1.50,0.00,0.00,0.00,0.00,ok,3,0,", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",boom"))
}
