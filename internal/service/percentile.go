package service

import (
	"math"
	"sort"
)

// Quantile math for the ZIP benchmark recompute. Deterministic over the full
// population: the aggregator deliberately recomputes exact statistics instead
// of keeping approximate streaming sketches, trading write cost for
// correctness at the corpus sizes this product sees.

// median returns the exact median of values, or nil for an empty slice.
func median(values []float64) *float64 {
	return quantile(values, 0.5)
}

// quantile returns the q-th quantile (0 <= q <= 1) of values using linear
// interpolation between closest ranks, or nil for an empty slice.
func quantile(values []float64, q float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		v := sorted[0]
		return &v
	}

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		v := sorted[lower]
		return &v
	}
	frac := pos - float64(lower)
	v := sorted[lower]*(1-frac) + sorted[upper]*frac
	return &v
}

// prevalencePct returns the percentage in [0,100] of true values among the
// observed (non-nil) ones, or nil when nothing was observed.
func prevalencePct(flags []*bool) *float64 {
	observed, positive := 0, 0
	for _, f := range flags {
		if f == nil {
			continue
		}
		observed++
		if *f {
			positive++
		}
	}
	if observed == 0 {
		return nil
	}
	pct := float64(positive) / float64(observed) * 100
	return &pct
}

// percentileRank returns the percentile (0-100, rounded) of value within the
// population, counting the share of values at or below it. An empty
// population yields 50: a lone lease defines its own market.
func percentileRank(population []float64, value float64) int {
	if len(population) == 0 {
		return 50
	}
	atOrBelow := 0
	for _, v := range population {
		if v <= value {
			atOrBelow++
		}
	}
	return int(math.Round(float64(atOrBelow) / float64(len(population)) * 100))
}
