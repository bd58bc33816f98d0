package bench

import (
	"math"
	"sort"
)

// Stats summarizes a list of latency samples in microseconds.
type Stats struct {
	Count    int     `json:"count"`
	MinUs    float64 `json:"min_us"`
	MaxUs    float64 `json:"max_us"`
	MeanUs   float64 `json:"mean_us"`
	MedianUs float64 `json:"median_us"`
	P95Us    float64 `json:"p95_us"`
	P99Us    float64 `json:"p99_us"`
}

// Summarize reduces samples to summary statistics. The input is not
// modified; the result is deterministic for a given multiset of samples
// regardless of their order. Returns nil for an empty input, which happens
// when every operation of a trial was filtered out or ops_count was zero.
func Summarize(samples []float64) *Stats {
	if len(samples) == 0 {
		return nil
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}

	return &Stats{
		Count:    len(sorted),
		MinUs:    sorted[0],
		MaxUs:    sorted[len(sorted)-1],
		MeanUs:   sum / float64(len(sorted)),
		MedianUs: percentile(sorted, 50),
		P95Us:    percentile(sorted, 95),
		P99Us:    percentile(sorted, 99),
	}
}

// percentile computes the nearest-rank percentile of an already sorted,
// non-empty sample list: index = ceil(p/100 * N) - 1, clamped to the valid
// range.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1

	if idx < 0 {
		idx = 0
	}

	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}
