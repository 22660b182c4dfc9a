// Package ssgsea computes single-sample gene set enrichment scores: for each
// sample independently, genes are ranked by expression and a weighted running
// sum rewards signature genes that sit near the top of the ranking.
package ssgsea

import (
	"math"
	"sort"
)

// rankScale is the value the highest rank is rescaled to.
const rankScale = 10000

// RankNormalize returns the average ranks of values (1 = lowest) scaled so that
// the highest possible rank is 10000. NaN values take the largest ranks and
// share their average rank.
func RankNormalize(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return nanLast(values[order[a]], values[order[b]])
	})

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && same(values[order[i]], values[order[j]]) {
			j++
		}

		// Positions i..j-1 are tied; ranks are 1-based
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			out[order[k]] = avg * rankScale / float64(n)
		}
		i = j
	}

	return out
}

// less orders NaN before every number.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return !math.IsNaN(b)
	}
	if math.IsNaN(b) {
		return false
	}

	return a < b
}

// nanLast orders NaN after every number.
func nanLast(a, b float64) bool {
	if math.IsNaN(b) {
		return !math.IsNaN(a)
	}
	if math.IsNaN(a) {
		return false
	}

	return a < b
}

func same(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// EnrichmentScore scores one sample. values holds a score per gene (already
// rank normalized if desired) and inSet marks the signature genes. Genes are
// walked from the highest value down; ties keep their input order. Each
// signature gene raises the running sum by |value|^weight divided by the total
// over all signature genes, and every other gene lowers it by 1/(N-Nh).
func EnrichmentScore(values []float64, inSet []bool, weight float64, norm Normalization) float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return less(values[order[b]], values[order[a]])
	})

	hits := 0
	hitSum := 0.0
	for i, member := range inSet {
		if !member {
			continue
		}
		hits++
		hitSum += hitWeight(values[i], weight)
	}
	if hits == 0 {
		return 0
	}

	// A zero or undefined total leaves every hit with the same weight
	uniform := hitSum == 0 || math.IsNaN(hitSum) || math.IsInf(hitSum, 0)
	if uniform {
		hitSum = float64(hits)
	}

	missStep := 0.0
	if misses := n - hits; misses > 0 {
		missStep = 1 / float64(misses)
	}

	var running, area, extreme float64
	for _, i := range order {
		if inSet[i] {
			if uniform {
				running += 1 / hitSum
			} else {
				running += hitWeight(values[i], weight) / hitSum
			}
		} else {
			running -= missStep
		}

		area += running
		if math.Abs(running) > math.Abs(extreme) {
			extreme = running
		}
	}

	if norm == MaxDeviation {
		return extreme
	}

	return area
}

func hitWeight(v, weight float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if weight == 0 {
		return 1
	}

	return math.Pow(math.Abs(v), weight)
}

// Normalize divides each score by the range of all scores. A zero range leaves
// every normalized score at zero.
func Normalize(es []float64) []float64 {
	out := make([]float64, len(es))
	if len(es) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range es {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := hi - lo
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return out
	}

	for i, v := range es {
		out[i] = v / span
	}

	return out
}
