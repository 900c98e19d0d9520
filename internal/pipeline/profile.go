package pipeline

import (
	"sync/atomic"
	"time"
)

// Profiler aggregates counters and phase timers across Process calls.
type Profiler struct {
	Processed     atomic.Int64
	Rejected      atomic.Int64
	Failed        atomic.Int64
	FieldsFound   atomic.Int64
	FieldsMissing atomic.Int64

	ValidateNs atomic.Int64
	DetectNs   atomic.Int64
	CropNs     atomic.Int64
	ExtractNs  atomic.Int64
}

func (p *Profiler) record(s State, elapsed time.Duration) {
	ns := elapsed.Nanoseconds()
	switch s {
	case Validated, Rejected:
		p.ValidateNs.Add(ns)
	case FrameDetected:
		p.DetectNs.Add(ns)
	case Cropped:
		p.CropNs.Add(ns)
	case FieldsExtracted:
		p.ExtractNs.Add(ns)
	case Done:
		p.Processed.Add(1)
	case Failed:
		p.Failed.Add(1)
	}
}

func (p *Profiler) rejected() { p.Rejected.Add(1) }

func (p *Profiler) fields(found, total int) {
	p.FieldsFound.Add(int64(found))
	p.FieldsMissing.Add(int64(total - found))
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	done := p.Processed.Load()
	out := map[string]any{
		"processed":      done,
		"rejected":       p.Rejected.Load(),
		"failed":         p.Failed.Load(),
		"fields_found":   p.FieldsFound.Load(),
		"fields_missing": p.FieldsMissing.Load(),
		"validate_ms":    p.ValidateNs.Load() / 1_000_000,
		"detect_ms":      p.DetectNs.Load() / 1_000_000,
		"crop_ms":        p.CropNs.Load() / 1_000_000,
		"extract_ms":     p.ExtractNs.Load() / 1_000_000,
	}
	if done > 0 {
		out["detect_ms_per_document"] = float64(p.DetectNs.Load()) / 1_000_000.0 / float64(done)
		out["extract_ms_per_document"] = float64(p.ExtractNs.Load()) / 1_000_000.0 / float64(done)
	}
	return out
}
