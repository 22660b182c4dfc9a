// Package pipeline runs one analysis end to end: load expression data, score
// the signature in every sample, stratify samples by score, join their
// survival data and compare the groups.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/carbocation/sigvival"
	"github.com/carbocation/sigvival/dataset"
	"github.com/carbocation/sigvival/signature"
	"github.com/carbocation/sigvival/ssgsea"
	"github.com/carbocation/sigvival/stratify"
	"github.com/carbocation/sigvival/survival"
)

// Source provides the read-only tables an analysis needs. *dataset.Store
// satisfies it.
type Source interface {
	Expression(ctx context.Context, cancerTypes []string) (*dataset.Matrix, error)
	SurvivalRecords(ctx context.Context) (map[string]survival.Record, error)
}

type Config struct {
	Scoring      ssgsea.Options
	MinGroupSize int
}

func DefaultConfig() Config {
	return Config{
		Scoring:      ssgsea.DefaultOptions(),
		MinGroupSize: stratify.DefaultMinGroupSize,
	}
}

// Runner is safe for concurrent use; it holds no per-request state.
type Runner struct {
	Source Source
	Config Config
}

func NewRunner(src Source, cfg Config) *Runner {
	return &Runner{Source: src, Config: cfg}
}

// Result is everything computed for one request. Nothing here is shared with
// other requests.
type Result struct {
	Request   Request
	Signature signature.Signature

	Scores *ssgsea.Result
	Strata *stratify.Result

	// Survival holds the records of the samples that entered the estimate.
	Survival map[string]survival.Record

	// MissingSurvival lists grouped samples with no usable survival record.
	MissingSurvival []string

	Comparison survival.Comparison
	ScoreStats Stats
	Warnings   []Warning
}

// Run validates req and, if it is well formed, performs the analysis. Errors
// that the user can fix by changing the request wrap one of the sigvival
// sentinel errors. Cancelling ctx aborts scoring.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sig, err := req.Signature()
	if err != nil {
		return nil, err
	}

	matrix, err := r.Source.Expression(ctx, req.cancerTypes())
	if err != nil {
		return nil, err
	}

	out := &Result{
		Request:   req,
		Signature: sig,
		Warnings:  make([]Warning, 0),
	}

	scores, err := ssgsea.Score(ctx, matrix, sig, r.Config.Scoring)
	if err != nil {
		return nil, err
	}
	out.Scores = scores
	out.ScoreStats = Summarize(scores.NES())
	if len(scores.Dropped) > 0 {
		out.Warnings = append(out.Warnings, droppedGenesWarning(scores.Dropped, len(sig.Genes)))
	}

	samples := make([]string, len(scores.Scores))
	for i, s := range scores.Scores {
		samples[i] = s.Sample
	}

	strata, err := stratify.Stratify(samples, scores.NES(), req.CutPoint, r.Config.MinGroupSize)
	if err != nil {
		return nil, err
	}
	out.Strata = strata

	records, err := r.Source.SurvivalRecords(ctx)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(strata.Groups))
	groups := make([][]survival.Record, len(strata.Groups))
	out.Survival = make(map[string]survival.Record)
	out.MissingSurvival = make([]string, 0)
	for g, group := range strata.Groups {
		labels[g] = group.Label
		groups[g] = make([]survival.Record, 0, len(group.Samples))
		for _, sample := range group.Samples {
			rec, exists := records[sample]
			if !exists {
				out.MissingSurvival = append(out.MissingSurvival, sample)
				continue
			}
			groups[g] = append(groups[g], rec)
			out.Survival[sample] = rec
		}
	}

	if len(out.MissingSurvival) > 0 {
		out.Warnings = append(out.Warnings, missingSurvivalWarning(out.MissingSurvival))
		log.Printf("%s: %d grouped samples have no survival data and were excluded\n", sig.Name, len(out.MissingSurvival))
	}

	minSize := r.Config.MinGroupSize
	if minSize < 1 {
		minSize = 1
	}
	for g, recs := range groups {
		if len(recs) < minSize {
			return nil, fmt.Errorf("group %q has %d samples with survival data but at least %d are needed: %w", labels[g], len(recs), minSize, sigvival.ErrInsufficientSamples)
		}
	}

	cmp, err := survival.Compare(labels, groups)
	if err != nil {
		return nil, err
	}
	out.Comparison = cmp

	if cmp.CoxErr != "" {
		out.Warnings = append(out.Warnings, Warning{
			Kind:    HazardRatioUnavailable,
			Message: "The hazard ratio could not be estimated: " + cmp.CoxErr,
		})
	}

	return out, nil
}

// Included reports whether a sample entered the survival estimate.
func (r *Result) Included(sample string) bool {
	_, ok := r.Survival[sample]
	return ok
}
