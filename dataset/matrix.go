package dataset

import (
	"fmt"
	"log"
)

// Matrix is a genes x samples expression matrix. Values are stored column-wise
// (one slice per sample) because every consumer works one sample at a time.
// A Matrix is treated as immutable once built and is shared across requests.
type Matrix struct {
	genes   []string
	samples []string
	columns [][]float64

	geneIndex   map[string]int
	sampleIndex map[string]int
}

// NewMatrix builds a matrix from sample columns. columns[j][i] is the value of
// genes[i] in samples[j]. Sample identifiers must be unique; duplicated genes
// keep their first row.
func NewMatrix(genes, samples []string, columns [][]float64) (*Matrix, error) {
	if len(columns) != len(samples) {
		return nil, fmt.Errorf("%d sample columns given for %d samples", len(columns), len(samples))
	}

	m := &Matrix{
		genes:       genes,
		samples:     samples,
		columns:     columns,
		geneIndex:   make(map[string]int, len(genes)),
		sampleIndex: make(map[string]int, len(samples)),
	}

	for j, s := range samples {
		if _, exists := m.sampleIndex[s]; exists {
			return nil, fmt.Errorf("sample %s appears more than once", s)
		}
		m.sampleIndex[s] = j

		if len(columns[j]) != len(genes) {
			return nil, fmt.Errorf("sample %s has %d values for %d genes", s, len(columns[j]), len(genes))
		}
	}

	for i, g := range genes {
		if _, exists := m.geneIndex[g]; exists {
			continue
		}
		m.geneIndex[g] = i
	}

	return m, nil
}

func (m *Matrix) GeneNames() []string   { return m.genes }
func (m *Matrix) SampleNames() []string { return m.samples }
func (m *Matrix) NGenes() int           { return len(m.genes) }
func (m *Matrix) NSamples() int         { return len(m.samples) }

// Column returns the values of every gene for sample j. The slice must not be
// modified.
func (m *Matrix) Column(j int) []float64 {
	return m.columns[j]
}

// HasGene reports whether gene is a row of the matrix.
func (m *Matrix) HasGene(gene string) bool {
	_, exists := m.geneIndex[gene]
	return exists
}

// GeneIndex returns the row of gene, if present.
func (m *Matrix) GeneIndex(gene string) (int, bool) {
	i, exists := m.geneIndex[gene]
	return i, exists
}

// SampleIndex returns the column of sample, if present.
func (m *Matrix) SampleIndex(sample string) (int, bool) {
	j, exists := m.sampleIndex[sample]
	return j, exists
}

// Concat joins matrices column-wise. Genes are the intersection of every
// matrix's genes in the order of the first matrix; genes not shared by all
// parts are dropped with a log line. Sample identifiers must be unique across
// all parts.
func Concat(parts ...*Matrix) (*Matrix, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no matrices to concatenate")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	genes := make([]string, 0, parts[0].NGenes())
	seen := make(map[string]struct{}, parts[0].NGenes())
	for _, g := range parts[0].genes {
		if _, dupe := seen[g]; dupe {
			continue
		}
		seen[g] = struct{}{}

		shared := true
		for _, p := range parts[1:] {
			if !p.HasGene(g) {
				shared = false
				break
			}
		}
		if shared {
			genes = append(genes, g)
		}
	}
	if dropped := len(parts[0].geneIndex) - len(genes); dropped > 0 {
		log.Printf("Dropped %d genes that were not present in all %d expression matrices\n", dropped, len(parts))
	}

	samples := make([]string, 0)
	columns := make([][]float64, 0)
	for _, p := range parts {
		rows := make([]int, len(genes))
		for i, g := range genes {
			rows[i], _ = p.GeneIndex(g)
		}

		for j, s := range p.samples {
			col := make([]float64, len(genes))
			for i, row := range rows {
				col[i] = p.columns[j][row]
			}
			samples = append(samples, s)
			columns = append(columns, col)
		}
	}

	return NewMatrix(genes, samples, columns)
}

// SubsetSamples returns a matrix with only the named samples, in the order
// given. Unknown samples are an error.
func (m *Matrix) SubsetSamples(samples []string) (*Matrix, error) {
	columns := make([][]float64, 0, len(samples))
	for _, s := range samples {
		j, exists := m.SampleIndex(s)
		if !exists {
			return nil, fmt.Errorf("sample %s is not in the matrix", s)
		}
		columns = append(columns, m.columns[j])
	}

	return NewMatrix(m.genes, samples, columns)
}
