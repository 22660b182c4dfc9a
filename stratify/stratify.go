// Package stratify cuts per-sample scores into ordered groups at quantile
// thresholds.
package stratify

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival"
	"github.com/montanaflynn/stats"
)

// DefaultMinGroupSize is the smallest group survival estimation is attempted on
const DefaultMinGroupSize = 2

// Excluded is the group of samples dropped by an extremes policy.
const Excluded = -1

type Group struct {
	Label   string   `json:"label"`
	Samples []string `json:"samples"`
}

type Assignment struct {
	Sample string  `json:"sample"`
	Score  float64 `json:"score"`

	// Group indexes Result.Groups, or is Excluded.
	Group int `json:"group"`
}

type Result struct {
	CutPoint CutPoint `json:"cut_point"`

	// Thresholds are the score values the population was cut at, ascending.
	Thresholds []float64 `json:"thresholds"`

	// Groups are ordered from the lowest scores to the highest.
	Groups []Group `json:"groups"`

	// Assignments are in input order.
	Assignments []Assignment `json:"assignments"`
}

// Label returns the label of a group index, or "" when it is Excluded or
// unknown.
func (r *Result) Label(group int) string {
	if group < 0 || group >= len(r.Groups) {
		return ""
	}

	return r.Groups[group].Label
}

// Stratify assigns each sample to a group. With k thresholds t1 < ... < tk, a
// score belongs to bin i when t(i) < score <= t(i+1), so a score equal to a
// threshold goes to the lower bin. Extremes policies keep only the lowest and
// highest bins. Every kept group must hold at least minSize samples, or the
// error is ErrInsufficientSamples.
func Stratify(samples []string, scores []float64, cut CutPoint, minSize int) (*Result, error) {
	if len(samples) != len(scores) {
		return nil, fmt.Errorf("%d samples given with %d scores", len(samples), len(scores))
	}
	if err := cut.Validate(); err != nil {
		return nil, err
	}
	if minSize < 1 {
		minSize = 1
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no scored samples to stratify: %w", sigvival.ErrInsufficientSamples)
	}

	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("sample %s has a non-finite score %v", samples[i], s)
		}
	}

	thresholds, err := cutThresholds(scores, cut)
	if err != nil {
		return nil, err
	}

	labels := cut.labels()
	bins := len(thresholds) + 1

	// binGroup maps a bin to its position in Groups
	binGroup := make([]int, bins)
	groups := make([]Group, 0, bins)
	for b := 0; b < bins; b++ {
		if cut.Extremes() && b != 0 && b != bins-1 {
			binGroup[b] = Excluded
			continue
		}
		binGroup[b] = len(groups)
		groups = append(groups, Group{Label: labels[b], Samples: make([]string, 0)})
	}

	out := &Result{
		CutPoint:    cut,
		Thresholds:  thresholds,
		Groups:      groups,
		Assignments: make([]Assignment, len(samples)),
	}

	for i, s := range scores {
		bin := 0
		for _, t := range thresholds {
			if s > t {
				bin++
			}
		}

		g := binGroup[bin]
		out.Assignments[i] = Assignment{Sample: samples[i], Score: s, Group: g}
		if g != Excluded {
			out.Groups[g].Samples = append(out.Groups[g].Samples, samples[i])
		}
	}

	for _, g := range out.Groups {
		if len(g.Samples) < minSize {
			return out, fmt.Errorf("group %q has %d samples but at least %d are needed: %w", g.Label, len(g.Samples), minSize, sigvival.ErrInsufficientSamples)
		}
	}

	return out, nil
}

func cutThresholds(scores []float64, cut CutPoint) ([]float64, error) {
	if cut.Policy == Median {
		m, err := stats.Median(scores)
		if err != nil {
			return nil, pfx.Err(err)
		}
		return []float64{m}, nil
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	probs := cut.probabilities()
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = Quantile(p, sorted)
	}

	return out, nil
}
