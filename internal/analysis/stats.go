package analysis

import (
	"sort"
)

// mean is the arithmetic mean; callers guarantee len(values) > 0.
func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile uses linear interpolation between closest ranks.
// sorted must be ascending and non-empty; p is in [0, 1].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentile(sorted, 0.5)
}

// ranks assigns 1-based ranks; tied values share the average of their positions.
func ranks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[order[j]] == values[order[i]] {
			j++
		}
		// positions i..j-1 hold ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			out[order[k]] = avg
		}
		i = j
	}
	return out
}

func spearman(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	return pearson(ranks(xs), ranks(ys))
}
