// Package metrics keeps in-process latency distributions for outbound calls.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

const defaultMaxSamples = 10000

// Histogram tracks a distribution of durations and calculates percentiles.
type Histogram struct {
	mu      sync.RWMutex
	samples []float64 // milliseconds
	maxSize int
}

// Summary is a snapshot of a Histogram.
type Summary struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"meanMs"`
	P50Ms  float64 `json:"p50Ms"`
	P95Ms  float64 `json:"p95Ms"`
	MaxMs  float64 `json:"maxMs"`
}

// NewHistogram creates a histogram keeping at most maxSize samples.
// When maxSize is exceeded the oldest fifth is dropped.
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = defaultMaxSamples
	}
	return &Histogram{maxSize: maxSize}
}

// Record adds a duration sample.
func (h *Histogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, float64(d.Microseconds())/1000.0)
	if len(h.samples) > h.maxSize {
		h.samples = h.samples[max(h.maxSize/5, 1):]
	}
}

// Since records the time elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.Record(time.Since(start))
}

// Count returns the number of samples kept.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Percentile returns the value at p (0-100), interpolating between samples.
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.RLock()
	sorted := h.sorted()
	h.mu.RUnlock()
	return percentile(sorted, p)
}

// Summary returns count, mean, p50, p95 and max in one pass.
func (h *Histogram) Summary() Summary {
	h.mu.RLock()
	sorted := h.sorted()
	h.mu.RUnlock()

	if len(sorted) == 0 {
		return Summary{}
	}
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return Summary{
		Count:  len(sorted),
		MeanMs: round(sum / float64(len(sorted))),
		P50Ms:  round(percentile(sorted, 50)),
		P95Ms:  round(percentile(sorted, 95)),
		MaxMs:  sorted[len(sorted)-1],
	}
}

// Reset clears all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}

// sorted copies the samples. Callers hold h.mu.
func (h *Histogram) sorted() []float64 {
	out := make([]float64, len(h.samples))
	copy(out, h.samples)
	sort.Float64s(out)
	return out
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
