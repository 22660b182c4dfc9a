package ssgsea

import (
	"fmt"
	"math"
	"runtime"
	"strings"
)

// Normalization selects how the running sum is reduced to one score.
type Normalization int

const (
	// Area sums the running sum over the whole ranked list, as ssGSEA and GSVA
	// do.
	Area Normalization = iota

	// MaxDeviation takes the running sum at its largest absolute excursion
	// from zero, as classic GSEA does.
	MaxDeviation
)

func (n Normalization) String() string {
	switch n {
	case Area:
		return "area"
	case MaxDeviation:
		return "maxdev"
	}

	return fmt.Sprintf("Normalization(%d)", int(n))
}

// ParseNormalization accepts "area" or "maxdev" (also "max", "es").
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "area", "ssgsea":
		return Area, nil
	case "maxdev", "max", "es", "gsea":
		return MaxDeviation, nil
	}

	return Area, fmt.Errorf("unknown normalization %q, expected area or maxdev", s)
}

type Options struct {
	// Weight is the exponent applied to the absolute value of each signature
	// gene's rank score. 0 weights every gene equally; 0.25 is conventional
	// for ssGSEA.
	Weight float64

	Normalization Normalization

	// RankNormalize replaces each sample's values with their average rank
	// scaled to 10000 before scoring.
	RankNormalize bool

	// Threads bounds how many samples are scored at once.
	Threads int
}

func DefaultOptions() Options {
	return Options{
		Weight:        0.25,
		Normalization: Area,
		RankNormalize: true,
		Threads:       runtime.NumCPU(),
	}
}

func (o Options) Validate() error {
	if o.Weight < 0 || math.IsNaN(o.Weight) || math.IsInf(o.Weight, 0) {
		return fmt.Errorf("weight must be a finite, non-negative number, got %v", o.Weight)
	}

	if o.Normalization != Area && o.Normalization != MaxDeviation {
		return fmt.Errorf("unknown normalization %v", o.Normalization)
	}

	return nil
}
