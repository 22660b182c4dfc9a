package pipeline

import (
	"fmt"
	"strings"
)

// Warning kinds
const (
	MissingSurvivalData    = "missing_survival_data"
	DroppedGenes           = "dropped_genes"
	HazardRatioUnavailable = "hazard_ratio_unavailable"
)

// Warning is a soft problem reported beside the results. Samples or Genes
// list what it refers to, when applicable.
type Warning struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Samples []string `json:"samples,omitempty"`
	Genes   []string `json:"genes,omitempty"`
}

func (w Warning) String() string {
	return w.Message
}

func missingSurvivalWarning(samples []string) Warning {
	return Warning{
		Kind:    MissingSurvivalData,
		Message: fmt.Sprintf("%d samples had no survival data and were excluded from the survival analysis.", len(samples)),
		Samples: samples,
	}
}

func droppedGenesWarning(genes []string, total int) Warning {
	return Warning{
		Kind:    DroppedGenes,
		Message: fmt.Sprintf("%d of %d signature genes were not found in the expression data and were ignored: %s", len(genes), total, strings.Join(genes, ", ")),
		Genes:   genes,
	}
}
