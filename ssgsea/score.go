package ssgsea

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival"
	"github.com/carbocation/sigvival/signature"
)

// Matrix is the read-only view of an expression matrix the scorer needs.
type Matrix interface {
	GeneNames() []string
	SampleNames() []string
	GeneIndex(gene string) (int, bool)

	// Column returns the values of every gene for sample j. The scorer does
	// not modify it.
	Column(j int) []float64
}

// SampleScore is one sample's enrichment score, raw and normalized.
type SampleScore struct {
	Sample string  `json:"sample" csv:"sample"`
	ES     float64 `json:"es" csv:"es"`
	NES    float64 `json:"nes" csv:"nes"`
}

type Result struct {
	Signature signature.Signature
	Options   Options

	// Genes are the signature genes found in the matrix; Dropped are those
	// that were not.
	Genes   []string
	Dropped []string

	// Scores are in the matrix's sample order.
	Scores []SampleScore
}

// NES returns the normalized scores in sample order.
func (r *Result) NES() []float64 {
	out := make([]float64, len(r.Scores))
	for i, s := range r.Scores {
		out[i] = s.NES
	}

	return out
}

// Score computes the enrichment of sig in every sample of m. Signature genes
// missing from m are dropped with a log line; if none remain the error is
// ErrInvalidSignature and nothing is scored. Samples are scored concurrently
// by up to opts.Threads goroutines. Cancelling ctx stops scheduling further
// samples and returns ctx.Err().
func Score(ctx context.Context, m Matrix, sig signature.Signature, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, pfx.Err(err)
	}

	found, missing := sig.Resolve(func(g string) bool {
		_, ok := m.GeneIndex(g)
		return ok
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("none of the %d genes in %s are in the expression data: %w", len(sig.Genes), sig.Name, sigvival.ErrInvalidSignature)
	}
	if len(missing) > 0 {
		log.Printf("%s: dropped %d of %d genes not found in the expression data: %s\n", sig.Name, len(missing), len(sig.Genes), strings.Join(missing, ", "))
	}

	inSet := make([]bool, len(m.GeneNames()))
	for _, g := range found {
		i, _ := m.GeneIndex(g)
		inSet[i] = true
	}

	samples := m.SampleNames()
	es := make([]float64, len(samples))

	concurrency := opts.Threads
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan bool, concurrency)

	for j := range samples {
		if ctx.Err() != nil {
			break
		}

		sem <- true
		go func(j int) {
			defer func() { <-sem }()

			values := m.Column(j)
			if opts.RankNormalize {
				values = RankNormalize(values)
			}

			// Each goroutine owns es[j]
			es[j] = EnrichmentScore(values, inSet, opts.Weight, opts.Normalization)
		}(j)
	}

	for i := 0; i < cap(sem); i++ {
		sem <- true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nes := Normalize(es)
	out := &Result{
		Signature: sig,
		Options:   opts,
		Genes:     found,
		Dropped:   missing,
		Scores:    make([]SampleScore, len(samples)),
	}
	for j, s := range samples {
		out.Scores[j] = SampleScore{Sample: s, ES: es[j], NES: nes[j]}
	}

	return out, nil
}
