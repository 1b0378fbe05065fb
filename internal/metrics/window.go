package metrics

import (
	"sort"
	"time"
)

// window is a fixed-size ring of recent latencies.
type window struct {
	samples []time.Duration
	next    int
	full    bool
}

func newWindow(size int) *window {
	if size <= 0 {
		size = 100
	}
	return &window{samples: make([]time.Duration, size)}
}

func (w *window) add(d time.Duration) {
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

func (w *window) values() []time.Duration {
	n := w.len()
	out := make([]time.Duration, n)
	copy(out, w.samples[:n])
	return out
}

func (w *window) mean() time.Duration {
	n := w.len()
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range w.samples[:n] {
		sum += d
	}
	return sum / time.Duration(n)
}

// percentile uses nearest-rank on a sorted copy.
func (w *window) percentile(p float64) time.Duration {
	vals := w.values()
	if len(vals) == 0 {
		return 0
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	rank := int(p*float64(len(vals))+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(vals) {
		rank = len(vals) - 1
	}
	return vals[rank]
}
