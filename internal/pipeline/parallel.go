package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// BatchConfig holds configuration for processing several documents.
type BatchConfig struct {
	MaxWorkers int              // documents processed at once (0 = runtime.NumCPU())
	Progress   ProgressCallback // optional progress reporting
}

// DefaultBatchConfig returns sensible defaults for batch processing.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{MaxWorkers: runtime.NumCPU()}
}

// Input is one document of a batch.
type Input struct {
	Name string
	Data []byte
}

// BatchResult pairs an input name with its outcome.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

type batchJob struct {
	index int
	input Input
}

// ProcessBatch runs Process for every input using a worker pool. Results
// keep input order; per-document errors are reported in BatchResult.Err.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []Input, cfg BatchConfig) ([]BatchResult, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no inputs provided")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(inputs))
	defer progress.OnComplete()

	out := make([]BatchResult, len(inputs))
	jobs := make(chan batchJob)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for range min(cfg.MaxWorkers, len(inputs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res, err := p.Process(ctx, job.input.Data)
				out[job.index] = BatchResult{Name: job.input.Name, Result: res, Err: err}

				mu.Lock()
				done++
				if err != nil {
					progress.OnError(job.index, err)
				}
				progress.OnProgress(done, len(inputs))
				mu.Unlock()
			}
		}()
	}

	for i, in := range inputs {
		select {
		case jobs <- batchJob{index: i, input: in}:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}
