package survival

import (
	"fmt"
	"math"
)

// Comparison holds per-group curves together with the statistics comparing
// them.
type Comparison struct {
	Curves  []Curve
	LogRank LogRank
	Cox     Cox

	// CoxErr is set when the hazard ratio could not be estimated. The curves
	// and log-rank test are still valid.
	CoxErr string `json:",omitempty"`
}

// Compare fits a Kaplan-Meier curve per group and compares the groups. The
// hazard ratio is estimated with the ordinal group index (0 for the first
// group) as the single Cox covariate, so with two groups it is the hazard of
// the second group relative to the first, and with more groups it is the
// hazard ratio per step up the ordering. The p-value comes from the omnibus
// log-rank test.
func Compare(labels []string, groups [][]Record) (Comparison, error) {
	if len(labels) != len(groups) {
		return Comparison{}, fmt.Errorf("%d labels for %d groups", len(labels), len(groups))
	}

	out := Comparison{Curves: make([]Curve, 0, len(groups))}

	pooled := make([]Record, 0)
	codes := make([]float64, 0)
	for i, g := range groups {
		out.Curves = append(out.Curves, KaplanMeier(labels[i], g))
		for _, r := range g {
			pooled = append(pooled, r)
			codes = append(codes, float64(i))
		}
	}

	lr, err := LogRankTest(groups)
	if err != nil {
		return out, err
	}
	out.LogRank = lr

	cox, err := FitCox(pooled, codes)
	if err != nil {
		out.CoxErr = err.Error()
		out.Cox = Cox{HR: math.NaN(), Lower: math.NaN(), Upper: math.NaN(), P: math.NaN()}
	} else {
		out.Cox = cox
	}

	return out, nil
}
