package survival

import (
	"errors"
	"math"
	"testing"
)

func recs(times []float64, events []bool) []Record {
	out := make([]Record, len(times))
	for i := range times {
		out[i] = Record{Time: times[i], Event: events[i]}
	}
	return out
}

func TestKaplanMeierNoCensoring(t *testing.T) {
	// Without censoring the estimate is the empirical survival fraction.
	c := KaplanMeier("A", recs([]float64{1, 2, 3, 4}, []bool{true, true, true, true}))

	expected := []float64{0.75, 0.5, 0.25, 0}
	if len(c.Points) != len(expected) {
		t.Fatalf("Got %d points, expected %d", len(c.Points), len(expected))
	}
	for i, p := range c.Points {
		if math.Abs(p.Survival-expected[i]) > 1e-12 {
			t.Errorf("At t=%v got S=%v, expected %v", p.Time, p.Survival, expected[i])
		}
		if p.AtRisk != 4-i {
			t.Errorf("At t=%v got %d at risk, expected %d", p.Time, p.AtRisk, 4-i)
		}
	}
	if c.Median != 2 {
		t.Errorf("Median was %v, expected 2", c.Median)
	}
	if c.Events != 4 || c.N != 4 {
		t.Errorf("Got %d events of %d, expected 4 of 4", c.Events, c.N)
	}
}

func TestKaplanMeierCensoring(t *testing.T) {
	// t=1 event (3 at risk), t=2 censored, t=3 event (1 at risk)
	c := KaplanMeier("A", recs([]float64{3, 1, 2}, []bool{true, true, false}))

	for _, v := range []struct {
		T float64
		S float64
	}{
		{0.5, 1},
		{1, 2.0 / 3.0},
		{2, 2.0 / 3.0},
		{3, 0},
	} {
		if got := c.At(v.T); math.Abs(got-v.S) > 1e-12 {
			t.Errorf("S(%v) = %v, expected %v", v.T, got, v.S)
		}
	}

	if len(c.CensorTimes) != 1 || c.CensorTimes[0] != 2 {
		t.Errorf("Censor times were %v, expected [2]", c.CensorTimes)
	}
	if c.Points[1].Censored != 1 || c.Points[1].Events != 0 {
		t.Errorf("Unexpected point at t=2: %+v", c.Points[1])
	}
}

func TestKaplanMeierTiesEventBeforeCensor(t *testing.T) {
	// A censoring at the same time as an event is still at risk for it.
	c := KaplanMeier("A", recs([]float64{1, 1, 2, 2}, []bool{true, false, true, true}))

	if got := c.At(1); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("S(1) = %v, expected 0.75", got)
	}
	if c.Points[0].AtRisk != 4 || c.Points[1].AtRisk != 2 {
		t.Errorf("Unexpected risk sets: %+v", c.Points)
	}
}

func TestKaplanMeierGreenwood(t *testing.T) {
	c := KaplanMeier("A", recs([]float64{1, 2, 3, 4, 5}, []bool{true, false, true, false, false}))

	// S(1) = 4/5, var = S^2 * 1/(5*4)
	p := c.Points[0]
	expectedSE := 0.8 * math.Sqrt(1.0/20.0)
	if math.Abs(p.StdErr-expectedSE) > 1e-12 {
		t.Errorf("SE was %v, expected %v", p.StdErr, expectedSE)
	}
	if !(p.Lower < p.Survival && p.Survival < p.Upper) {
		t.Errorf("Interval [%v, %v] does not bracket %v", p.Lower, p.Upper, p.Survival)
	}
	if !math.IsNaN(c.Median) {
		t.Errorf("Median should not be reached, got %v", c.Median)
	}
}

func TestLogRankTwoGroups(t *testing.T) {
	a := recs([]float64{1, 2}, []bool{true, true})
	b := recs([]float64{3, 4}, []bool{true, true})

	lr, err := LogRankTest([][]Record{a, b})
	if err != nil {
		t.Fatal(err)
	}

	// Worked by hand: O-E for group A is 7/6 and its variance is 17/36.
	if expected := 49.0 / 17.0; math.Abs(lr.ChiSquare-expected) > 1e-9 {
		t.Errorf("Chi square was %v, expected %v", lr.ChiSquare, expected)
	}
	if lr.DF != 1 {
		t.Errorf("DF was %d", lr.DF)
	}
	if lr.P < 0.08 || lr.P > 0.1 {
		t.Errorf("P was %v, expected about 0.09", lr.P)
	}
	if math.Abs(lr.Observed[0]+lr.Observed[1]-(lr.Expected[0]+lr.Expected[1])) > 1e-9 {
		t.Errorf("Observed and expected totals differ: %+v", lr)
	}
}

func TestLogRankIdenticalGroups(t *testing.T) {
	a := recs([]float64{1, 2, 3}, []bool{true, false, true})

	lr, err := LogRankTest([][]Record{a, a})
	if err != nil {
		t.Fatal(err)
	}
	if lr.ChiSquare > 1e-12 || math.Abs(lr.P-1) > 1e-9 {
		t.Errorf("Identical groups gave %+v", lr)
	}
}

func TestLogRankThreeGroups(t *testing.T) {
	a := recs([]float64{1, 2, 3}, []bool{true, true, true})
	b := recs([]float64{4, 5, 6}, []bool{true, true, true})
	c := recs([]float64{7, 8, 9}, []bool{true, true, false})

	lr, err := LogRankTest([][]Record{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	if lr.DF != 2 {
		t.Errorf("DF was %d, expected 2", lr.DF)
	}
	if lr.ChiSquare <= 0 || lr.P >= 1 {
		t.Errorf("Expected separated groups to differ: %+v", lr)
	}

	if _, err := LogRankTest([][]Record{a}); err == nil {
		t.Error("Expected an error for a single group")
	}
}

func TestCoxDirectionAndSymmetry(t *testing.T) {
	pooled := recs(
		[]float64{2, 4, 6, 8, 10, 12, 1, 3, 5, 7, 9, 11},
		[]bool{true, true, false, true, true, false, true, true, true, false, true, true},
	)
	x := []float64{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}

	fit, err := FitCox(pooled, x)
	if err != nil {
		t.Fatal(err)
	}
	if !fit.Converged {
		t.Fatalf("Did not converge: %+v", fit)
	}
	if fit.HR <= 1 {
		t.Errorf("Group 1 dies earlier, expected HR > 1, got %v", fit.HR)
	}
	if !(fit.Lower < fit.HR && fit.HR < fit.Upper) {
		t.Errorf("CI [%v, %v] does not bracket %v", fit.Lower, fit.Upper, fit.HR)
	}

	flipped := make([]float64, len(x))
	for i := range x {
		flipped[i] = 1 - x[i]
	}
	fit2, err := FitCox(pooled, flipped)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(fit.HR*fit2.HR-1) > 1e-6 {
		t.Errorf("Flipping the coding should invert the HR: %v vs %v", fit.HR, fit2.HR)
	}

	// The score is zero at the maximum likelihood estimate
	sorted := make([]coxObs, 0)
	for i, r := range pooled {
		sorted = append(sorted, coxObs{Time: r.Time, Event: r.Event, X: x[i]})
	}
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Time > sorted[i].Time {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	if _, grad, _ := coxPartial(sorted, fit.Coef); math.Abs(grad) > 1e-6 {
		t.Errorf("Score at the estimate was %v", grad)
	}
}

func TestCoxDegenerate(t *testing.T) {
	pooled := recs([]float64{1, 2, 3}, []bool{true, true, true})
	if _, err := FitCox(pooled, []float64{1, 1, 1}); err != ErrDegenerateCox {
		t.Errorf("Expected ErrDegenerateCox for a constant covariate, got %v", err)
	}
	if _, err := FitCox(pooled, []float64{1}); err == nil {
		t.Error("Expected a length mismatch error")
	}
}

func TestCompare(t *testing.T) {
	low := recs([]float64{3, 6, 7, 8}, []bool{true, false, true, true})
	high := recs([]float64{1, 2, 4, 5}, []bool{true, true, false, true})

	cmp, err := Compare([]string{"Low", "High"}, [][]Record{low, high})
	if err != nil {
		t.Fatal(err)
	}
	if len(cmp.Curves) != 2 || cmp.Curves[1].Label != "High" {
		t.Fatalf("Unexpected curves: %+v", cmp.Curves)
	}
	if cmp.CoxErr != "" {
		t.Fatalf("Unexpected Cox error: %s", cmp.CoxErr)
	}
	if cmp.Cox.HR <= 1 {
		t.Errorf("High group dies earlier, expected HR > 1, got %v", cmp.Cox.HR)
	}
}

func TestCompareSeparated(t *testing.T) {
	// Every High sample fails before any Low sample, so beta diverges
	low := recs([]float64{5, 6, 7, 8}, []bool{true, false, true, true})
	high := recs([]float64{1, 2, 3, 4}, []bool{true, true, false, true})

	pooled := append(append([]Record{}, low...), high...)
	codes := []float64{0, 0, 0, 0, 1, 1, 1, 1}
	if _, err := FitCox(pooled, codes); !errors.Is(err, ErrCoxNotConverged) {
		t.Errorf("Expected ErrCoxNotConverged, got %v", err)
	}

	cmp, err := Compare([]string{"Low", "High"}, [][]Record{low, high})
	if err != nil {
		t.Fatal(err)
	}
	if cmp.CoxErr == "" {
		t.Errorf("Expected a Cox error, got %+v", cmp.Cox)
	}
	if !math.IsNaN(cmp.Cox.HR) || !math.IsNaN(cmp.Cox.P) {
		t.Errorf("Expected NaN HR and P, got %v and %v", cmp.Cox.HR, cmp.Cox.P)
	}
	if math.IsNaN(cmp.LogRank.P) {
		t.Error("The log-rank test should still be computed")
	}
}
