package survival

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LogRank is the result of an omnibus log-rank test across k groups. With two
// groups it is the ordinary two-sample log-rank test.
type LogRank struct {
	ChiSquare float64
	DF        int
	P         float64
	Observed  []float64
	Expected  []float64
}

// LogRankTest compares the survival distributions of two or more groups. At
// each distinct event time the expected number of events in each group is
// d*n_j/n, and the chi-square statistic is (O-E)' V^-1 (O-E) over the first k-1
// groups, with V the hypergeometric covariance of the observed counts.
func LogRankTest(groups [][]Record) (LogRank, error) {
	k := len(groups)
	if k < 2 {
		return LogRank{}, fmt.Errorf("log-rank test needs at least 2 groups, got %d", k)
	}

	out := LogRank{
		DF:       k - 1,
		Observed: make([]float64, k),
		Expected: make([]float64, k),
	}

	cov := mat.NewSymDense(k-1, nil)
	nj := make([]float64, k)
	dj := make([]float64, k)

	for _, t := range eventTimes(groups) {
		var n, d float64
		for j, g := range groups {
			a, b := atRisk(g, t)
			nj[j], dj[j] = float64(a), float64(b)
			n += nj[j]
			d += dj[j]
		}
		if n == 0 {
			continue
		}

		for j := 0; j < k; j++ {
			out.Observed[j] += dj[j]
			out.Expected[j] += d * nj[j] / n
		}

		if n < 2 {
			continue
		}

		scale := d * (n - d) / (n - 1)
		for a := 0; a < k-1; a++ {
			for b := a; b < k-1; b++ {
				v := -scale * nj[a] * nj[b] / (n * n)
				if a == b {
					v = scale * nj[a] / n * (1 - nj[a]/n)
				}
				cov.SetSym(a, b, cov.At(a, b)+v)
			}
		}
	}

	diff := mat.NewVecDense(k-1, nil)
	for j := 0; j < k-1; j++ {
		diff.SetVec(j, out.Observed[j]-out.Expected[j])
	}

	var inv mat.Dense
	if err := inv.Inverse(cov); err != nil {
		// Either there were no events at all or a group was never at risk at
		// any event time. In both cases the groups are indistinguishable.
		out.ChiSquare = 0
		out.P = 1
		return out, nil
	}

	out.ChiSquare = mat.Inner(diff, &inv, diff)
	if out.ChiSquare < 0 {
		out.ChiSquare = 0
	}
	out.P = distuv.ChiSquared{K: float64(out.DF)}.Survival(out.ChiSquare)

	return out, nil
}
