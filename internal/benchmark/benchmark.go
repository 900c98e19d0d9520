// Package benchmark measures extraction latency of a pipeline over a set of
// document photos.
package benchmark

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/MeKo-Tech/crbook/internal/pipeline"
)

// Extractor is the part of a pipeline the benchmark drives.
type Extractor interface {
	Process(ctx context.Context, data []byte) (*pipeline.Result, error)
}

// Stats summarises a series of durations.
type Stats struct {
	Min, Max, Mean time.Duration
	P50, P95       time.Duration
}

// Summarize computes Stats; an empty series gives zero Stats.
func Summarize(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return Stats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: total / time.Duration(len(sorted)),
		P50:  percentile(sorted, 0.50),
		P95:  percentile(sorted, 0.95),
	}
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Result is the outcome of benchmarking one image.
type Result struct {
	Name        string
	Runs        int
	Stats       Stats
	Status      pipeline.Status
	FieldsFound int
	// AllocKB is the heap allocated across all runs.
	AllocKB uint64
	Err     error
}

// String renders a one-line summary.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s: %d runs, mean %v, p50 %v, p95 %v, min %v, max %v, %d fields, alloc %d KB",
		r.Name, r.Runs, r.Stats.Mean, r.Stats.P50, r.Stats.P95, r.Stats.Min, r.Stats.Max, r.FieldsFound, r.AllocKB)
}

// Runner benchmarks an extractor.
type Runner struct {
	Extractor Extractor
	// Iterations are timed; Warmup runs before them are not.
	Iterations int
	Warmup     int
}

// Run benchmarks one image. Extraction errors end the series and are
// reported in Result.Err; only context cancellation is returned as error.
func (r *Runner) Run(ctx context.Context, name string, data []byte) (Result, error) {
	if r.Extractor == nil {
		return Result{}, errors.New("benchmark needs an extractor")
	}
	if r.Iterations <= 0 {
		return Result{}, fmt.Errorf("invalid iteration count %d", r.Iterations)
	}
	res := Result{Name: name}

	for range r.Warmup {
		if _, err := r.Extractor.Process(ctx, data); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Err = err
			return res, nil
		}
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	durations := make([]time.Duration, 0, r.Iterations)
	for range r.Iterations {
		start := time.Now()
		out, err := r.Extractor.Process(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Err = err
			break
		}
		durations = append(durations, time.Since(start))
		res.Status = out.Status
		res.FieldsFound = out.Found()
	}
	runtime.ReadMemStats(&after)

	res.Runs = len(durations)
	res.Stats = Summarize(durations)
	res.AllocKB = (after.TotalAlloc - before.TotalAlloc) / 1024
	return res, nil
}

// WriteCSV writes one row per result, durations in milliseconds.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"image", "runs", "mean_ms", "p50_ms", "p95_ms", "min_ms", "max_ms", "status", "fields_found", "alloc_kb", "error"})
	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
	}
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		_ = cw.Write([]string{
			r.Name,
			strconv.Itoa(r.Runs),
			ms(r.Stats.Mean), ms(r.Stats.P50), ms(r.Stats.P95), ms(r.Stats.Min), ms(r.Stats.Max),
			string(r.Status),
			strconv.Itoa(r.FieldsFound),
			strconv.FormatUint(r.AllocKB, 10),
			errText,
		})
	}
	cw.Flush()
	return cw.Error()
}
