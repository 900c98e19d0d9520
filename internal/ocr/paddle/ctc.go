package paddle

import "math"

// decodedSequence is the greedy CTC path for one batch item.
type decodedSequence struct {
	Classes []int
	Probs   []float64
}

// Confidence is the mean per-character probability, 0 when empty.
func (d decodedSequence) Confidence() float64 {
	if len(d.Probs) == 0 {
		return 0
	}
	var s float64
	for _, p := range d.Probs {
		s += p
	}
	return s / float64(len(d.Probs))
}

func argmax(v []float32) (int, float32) {
	if len(v) == 0 {
		return -1, 0
	}
	idx, best := 0, v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > best {
			idx, best = i, v[i]
		}
	}
	return idx, best
}

// probabilityOf returns v[idx] when v already looks like a distribution
// and the softmax probability of idx otherwise.
func probabilityOf(v []float32, idx int) float64 {
	if idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float64
	lo, hi := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if sum > 0.99 && sum < 1.01 && lo >= 0 && hi <= 1 {
		return float64(v[idx])
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - hi))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-hi)) / denom
}

// collapse drops blanks and merges consecutive repeats.
func collapse(classes []int, probs []float64, blank int) ([]int, []float64) {
	outC := make([]int, 0, len(classes))
	outP := make([]float64, 0, len(classes))
	prev := -1
	for i, c := range classes {
		if c == blank {
			prev = c
			continue
		}
		if c == prev {
			continue
		}
		outC = append(outC, c)
		outP = append(outP, probs[i])
		prev = c
	}
	return outC, outP
}

// decodeGreedy decodes logits laid out as [N, T, C].
func decodeGreedy(logits []float32, shape []int64, blank int) []decodedSequence {
	if len(shape) != 3 {
		return nil
	}
	n, t, c := int(shape[0]), int(shape[1]), int(shape[2])
	if n <= 0 || t <= 0 || c <= 0 || len(logits) < n*t*c {
		return nil
	}
	out := make([]decodedSequence, n)
	for b := range n {
		classes := make([]int, t)
		probs := make([]float64, t)
		for step := range t {
			off := (b*t + step) * c
			row := logits[off : off+c]
			idx, _ := argmax(row)
			classes[step] = idx
			probs[step] = probabilityOf(row, idx)
		}
		cc, cp := collapse(classes, probs, blank)
		out[b] = decodedSequence{Classes: cc, Probs: cp}
	}
	return out
}
