package pipeline

import (
	"math"
	"strconv"

	"github.com/carbocation/sigvival/survival"
)

// Number is a float64 that encodes as JSON null when it is NaN or infinite.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}

	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Number(math.NaN())
		return nil
	}

	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = Number(f)

	return nil
}

func numbers(values []float64) []Number {
	out := make([]Number, len(values))
	for i, v := range values {
		out[i] = Number(v)
	}

	return out
}

// Summary is the JSON form of a Result.
type Summary struct {
	Request      Request  `json:"request"`
	Signature    string   `json:"signature"`
	GenesUsed    []string `json:"genes_used"`
	GenesDropped []string `json:"genes_dropped"`
	Weight       Number   `json:"weight"`
	Method       string   `json:"normalization"`

	SamplesScored   int `json:"samples_scored"`
	SamplesGrouped  int `json:"samples_grouped"`
	SamplesAnalyzed int `json:"samples_analyzed"`

	Score      ScoreStats `json:"score_stats"`
	Thresholds []Number   `json:"thresholds"`

	Groups  []GroupSummary `json:"groups"`
	LogRank LogRankSummary `json:"log_rank"`
	Cox     CoxSummary     `json:"hazard_ratio"`

	Warnings []Warning `json:"warnings"`
}

type ScoreStats struct {
	N      int    `json:"n"`
	Mean   Number `json:"mean"`
	SD     Number `json:"sd"`
	Min    Number `json:"min"`
	Max    Number `json:"max"`
	Median Number `json:"median"`
}

type GroupSummary struct {
	Label          string      `json:"label"`
	N              int         `json:"n"`
	Events         int         `json:"events"`
	Observed       Number      `json:"observed"`
	Expected       Number      `json:"expected"`
	MedianSurvival Number      `json:"median_survival"`
	Curve          []CurveStep `json:"curve"`
}

type CurveStep struct {
	Time     Number `json:"time"`
	AtRisk   int    `json:"at_risk"`
	Events   int    `json:"events"`
	Censored int    `json:"censored"`
	Survival Number `json:"survival"`
	StdErr   Number `json:"std_err"`
	Lower    Number `json:"ci_lower"`
	Upper    Number `json:"ci_upper"`
}

type LogRankSummary struct {
	ChiSquare Number `json:"chi_square"`
	DF        int    `json:"df"`
	P         Number `json:"p"`
}

type CoxSummary struct {
	HR         Number `json:"hr"`
	Lower      Number `json:"ci_lower"`
	Upper      Number `json:"ci_upper"`
	P          Number `json:"p"`
	Coef       Number `json:"coef"`
	SE         Number `json:"se"`
	Converged  bool   `json:"converged"`
	Iterations int    `json:"iterations"`
	Error      string `json:"error,omitempty"`
}

func (r *Result) Summary() Summary {
	out := Summary{
		Request:      r.Request,
		Signature:    r.Signature.Name,
		GenesUsed:    r.Scores.Genes,
		GenesDropped: r.Scores.Dropped,
		Weight:       Number(r.Scores.Options.Weight),
		Method:       r.Scores.Options.Normalization.String(),

		SamplesScored:   len(r.Scores.Scores),
		SamplesAnalyzed: len(r.Survival),

		Score: ScoreStats{
			N:      r.ScoreStats.N,
			Mean:   Number(r.ScoreStats.Mean),
			SD:     Number(r.ScoreStats.SD),
			Min:    Number(r.ScoreStats.Min),
			Max:    Number(r.ScoreStats.Max),
			Median: Number(r.ScoreStats.Median),
		},
		Thresholds: numbers(r.Strata.Thresholds),

		Groups: make([]GroupSummary, 0, len(r.Comparison.Curves)),
		LogRank: LogRankSummary{
			ChiSquare: Number(r.Comparison.LogRank.ChiSquare),
			DF:        r.Comparison.LogRank.DF,
			P:         Number(r.Comparison.LogRank.P),
		},
		Cox: coxSummary(r.Comparison),

		Warnings: r.Warnings,
	}

	for _, g := range r.Strata.Groups {
		out.SamplesGrouped += len(g.Samples)
	}

	for i, c := range r.Comparison.Curves {
		g := GroupSummary{
			Label:          c.Label,
			N:              c.N,
			Events:         c.Events,
			Observed:       Number(math.NaN()),
			Expected:       Number(math.NaN()),
			MedianSurvival: Number(c.Median),
			Curve:          curveSteps(c),
		}
		if i < len(r.Comparison.LogRank.Observed) {
			g.Observed = Number(r.Comparison.LogRank.Observed[i])
			g.Expected = Number(r.Comparison.LogRank.Expected[i])
		}
		out.Groups = append(out.Groups, g)
	}

	return out
}

func coxSummary(cmp survival.Comparison) CoxSummary {
	c := cmp.Cox
	return CoxSummary{
		HR:         Number(c.HR),
		Lower:      Number(c.Lower),
		Upper:      Number(c.Upper),
		P:          Number(c.P),
		Coef:       Number(c.Coef),
		SE:         Number(c.SE),
		Converged:  c.Converged,
		Iterations: c.Iterations,
		Error:      cmp.CoxErr,
	}
}

func curveSteps(c survival.Curve) []CurveStep {
	out := make([]CurveStep, 0, len(c.Points))
	for _, p := range c.Points {
		out = append(out, CurveStep{
			Time:     Number(p.Time),
			AtRisk:   p.AtRisk,
			Events:   p.Events,
			Censored: p.Censored,
			Survival: Number(p.Survival),
			StdErr:   Number(p.StdErr),
			Lower:    Number(p.Lower),
			Upper:    Number(p.Upper),
		})
	}

	return out
}
