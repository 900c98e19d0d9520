package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/frame"
	"github.com/MeKo-Tech/crbook/internal/utils"
)

type observerKey struct{}

// ObserveContext returns a context whose Process calls also report to o.
func ObserveContext(ctx context.Context, o StateObserver) context.Context {
	if o == nil {
		return ctx
	}
	return context.WithValue(ctx, observerKey{}, o)
}

// run tracks one Process call.
type run struct {
	p     *Pipeline
	obs   StateObserver
	last  time.Time
	state State
}

func (p *Pipeline) newRun(ctx context.Context) *run {
	r := &run{p: p, last: time.Now()}
	r.obs, _ = ctx.Value(observerKey{}).(StateObserver)
	return r
}

// enter moves to s and returns the time spent since the previous state.
func (r *run) enter(s State, err error) time.Duration {
	now := time.Now()
	elapsed := now.Sub(r.last)
	r.last = now
	r.state = s

	e := Event{State: s, Elapsed: elapsed, Err: err}
	for _, o := range r.p.observers {
		o.OnState(e)
	}
	if r.obs != nil {
		r.obs.OnState(e)
	}
	r.p.profiler.record(s, elapsed)
	return elapsed
}

func (r *run) fail(err *PhaseError) error {
	r.enter(Failed, err)
	slog.Warn("Extraction failed", "phase", err.Phase, "kind", err.Kind, "error", err.Err)
	return err
}

// Process decodes data and runs the full extraction. A rejected document is
// not an error: the result has status StatusNotExpectedDocument and every
// field absent.
func (p *Pipeline) Process(ctx context.Context, data []byte) (*Result, error) {
	r := p.newRun(ctx)
	start := r.last
	r.enter(Received, nil)

	img, meta, err := utils.DecodeImage(data)
	if err != nil {
		return nil, r.fail(&PhaseError{Phase: Received, Kind: InvalidImage, Err: err})
	}
	slog.Debug("Image decoded", "format", meta.Format, "width", meta.Width, "height", meta.Height, "bytes", meta.SizeBytes)

	res := &Result{
		DocType:     p.cfg.DocType,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
	}
	res.Timings.Decode = time.Since(start)
	if err := p.extract(ctx, r, img, res); err != nil {
		return nil, err
	}
	res.Timings.Total = time.Since(start)
	return res, nil
}

// ProcessImage runs the extraction on an already decoded image. The result
// carries no base64 image.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*Result, error) {
	r := p.newRun(ctx)
	start := r.last
	r.enter(Received, nil)
	if img == nil {
		return nil, r.fail(&PhaseError{Phase: Received, Kind: InvalidImage, Err: errors.New("input image is nil")})
	}

	res := &Result{DocType: p.cfg.DocType}
	if err := p.extract(ctx, r, img, res); err != nil {
		return nil, err
	}
	res.Timings.Total = time.Since(start)
	return res, nil
}

func (p *Pipeline) extract(ctx context.Context, r *run, img image.Image, res *Result) error {
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	if err := ctx.Err(); err != nil {
		return r.fail(&PhaseError{Phase: Validated, Kind: Canceled, Err: err})
	}
	ok, page, err := p.validator.Check(ctx, img, p.cfg.DocType)
	if err != nil {
		return r.fail(phaseError(Validated, err))
	}
	if !ok {
		res.Timings.Validate = r.enter(Rejected, nil)
		res.Status = StatusNotExpectedDocument
		res.Fields = p.absentFields()
		p.profiler.rejected()
		slog.Info("Document rejected", "doctype", p.cfg.DocType)
		return nil
	}
	res.Timings.Validate = r.enter(Validated, nil)

	var entries []FieldEntry
	if len(p.registry) > 0 {
		f, cropped, err := p.locate(ctx, r, img, res)
		if err != nil {
			return err
		}
		res.Frame = &f

		var perr *PhaseError
		entries, perr = p.regionFields(ctx, cropped)
		if perr != nil {
			return r.fail(perr)
		}
	}
	// Page fields read the full-image OCR the validator already ran, so
	// they also see text printed outside the outline.
	if p.usePageFields() {
		for _, pf := range p.pageFields {
			entries = append(entries, FieldEntry{Name: pf.Name, Value: pf.Extractor.Extract(page)})
		}
	}
	res.Fields = entries
	res.Status = StatusOK
	res.Timings.Extract = r.enter(FieldsExtracted, nil)
	p.profiler.fields(res.Found(), len(entries))

	r.enter(Done, nil)
	slog.Info("Document extracted",
		"doctype", p.cfg.DocType,
		"found", res.Found(),
		"fields", len(entries))
	return nil
}

// locate finds the outline and crops the page to it.
func (p *Pipeline) locate(ctx context.Context, r *run, img image.Image, res *Result) (frame.Frame, image.Image, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, nil, r.fail(&PhaseError{Phase: FrameDetected, Kind: Canceled, Err: err})
	}
	f, err := p.detector.DetectFrame(ctx, img)
	if err != nil {
		return frame.Frame{}, nil, r.fail(phaseError(FrameDetected, err))
	}
	res.Timings.Detect = r.enter(FrameDetected, nil)
	slog.Debug("Frame located", "frame", f.String())

	cropped, err := frame.Crop(img, f)
	if err != nil {
		return frame.Frame{}, nil, r.fail(phaseError(Cropped, err))
	}
	res.Timings.Crop = r.enter(Cropped, nil)
	return f, cropped, nil
}

// regionFields OCRs every registry zone of the cropped page with at most
// p.workers concurrent calls. Entries keep registry order.
func (p *Pipeline) regionFields(ctx context.Context, page image.Image) ([]FieldEntry, *PhaseError) {
	entries := make([]FieldEntry, len(p.registry))
	for i, spec := range p.registry {
		entries[i].Name = spec.Name
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr *PhaseError
	)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(p.workers, len(p.registry)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				spec := p.registry[i]
				v, err := p.regionField(ctx, page, spec)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = phaseError(FieldsExtracted, err)
						firstErr.Field = spec.Name
						cancel()
					}
					mu.Unlock()
					continue
				}
				entries[i].Value = v
			}
		}()
	}

	for i := range p.registry {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, &PhaseError{Phase: FieldsExtracted, Kind: Canceled, Err: err}
	}
	return entries, nil
}

func (p *Pipeline) regionField(ctx context.Context, page image.Image, spec fields.Spec) (fields.Value, error) {
	if err := ctx.Err(); err != nil {
		return fields.Absent, err
	}
	res, err := p.region.Recognize(ctx, page, spec.Rect, spec.Tolerance)
	if err != nil {
		return fields.Absent, err
	}
	v := spec.Extractor.Extract(res)
	if !v.Found {
		slog.Debug("Field pattern not found", "field", spec.Name, "kind", FieldPatternNotFound, "texts", res.Texts())
	}
	return v, nil
}

func (p *Pipeline) absentFields() []FieldEntry {
	names := p.FieldNames()
	out := make([]FieldEntry, len(names))
	for i, n := range names {
		out[i] = FieldEntry{Name: n, Value: fields.Absent}
	}
	return out
}
