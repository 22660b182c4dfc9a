package pipeline

import (
	"math"
	"sort"

	"github.com/carbocation/sigvival/stratify"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats describes the distribution of scores.
type Stats struct {
	N      int
	Mean   float64
	SD     float64
	Min    float64
	Max    float64
	Median float64
}

// Summarize ignores non-finite values. With no values every field but N is
// NaN.
func Summarize(values []float64) Stats {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		finite = append(finite, v)
	}

	out := Stats{N: len(finite)}
	if len(finite) == 0 {
		nan := math.NaN()
		out.Mean, out.SD, out.Min, out.Max, out.Median = nan, nan, nan, nan, nan
		return out
	}

	out.Mean, out.SD = stat.MeanStdDev(finite, nil)
	out.Min = floats.Min(finite)
	out.Max = floats.Max(finite)

	sort.Float64s(finite)
	out.Median = stratify.Quantile(0.5, finite)

	return out
}
