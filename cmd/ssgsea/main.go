// ssgsea scores every sample of an expression matrix against one gene
// signature and writes a tab-delimited table of enrichment scores to stdout.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/sigvival"
	_ "github.com/carbocation/sigvival/compileinfoprint"
	"github.com/carbocation/sigvival/dataset"
	"github.com/carbocation/sigvival/export"
	"github.com/carbocation/sigvival/signature"
	"github.com/carbocation/sigvival/ssgsea"
)

func main() {
	var expression, sigFile, genes, name, normalization, samples string
	var weight float64
	var threads int
	var histogram, noRank bool
	flag.StringVar(&expression, "expression", "", "Expression matrix (genes x samples; tsv, csv, optionally gzipped, or parquet). May be a gs:// URL.")
	flag.StringVar(&sigFile, "signature", "", "Gene set file (.txt, .csv, .tsv, .gmt, .grp, .xls)")
	flag.StringVar(&genes, "genes", "", "Comma- or space-separated genes, as an alternative to --signature")
	flag.StringVar(&name, "name", "", "Signature name. For .gmt files, selects the gene set.")
	flag.Float64Var(&weight, "weight", 0.25, "Weighting exponent applied to the rank of each signature gene")
	flag.StringVar(&normalization, "normalization", "area", "'area' (sum of the running sum) or 'maxdev' (maximum deviation)")
	flag.IntVar(&threads, "threads", runtime.NumCPU(), "Number of samples to score concurrently")
	flag.BoolVar(&noRank, "raw", false, "Rank genes by their raw values instead of rank-normalizing each sample first")
	flag.StringVar(&samples, "samples", "", "(Optional) Comma- or space-separated sample IDs to score, instead of every sample")
	flag.BoolVar(&histogram, "histogram", false, "Print a histogram of the normalized scores to stderr")
	flag.Parse()

	if expression == "" || (sigFile == "" && genes == "") {
		flag.PrintDefaults()
		os.Exit(1)
	}

	norm, err := ssgsea.ParseNormalization(normalization)
	if err != nil {
		log.Fatalln(err)
	}

	opts := ssgsea.DefaultOptions()
	opts.Weight = weight
	opts.Normalization = norm
	opts.Threads = threads
	opts.RankNormalize = !noRank

	var sig signature.Signature
	if sigFile != "" {
		sigFile, err = sigvival.ExpandHome(sigFile)
		if err != nil {
			log.Fatalln(err)
		}
		sig, err = signature.ReadFile(sigFile, name)
	} else {
		if name == "" {
			name = "signature"
		}
		sig, err = signature.New(name, signature.ParseList(genes))
	}
	if err != nil {
		log.Fatalln(err)
	}

	expression, err = sigvival.ExpandHome(expression)
	if err != nil {
		log.Fatalln(err)
	}

	ctx := context.Background()

	var client *storage.Client
	if sigvival.IsGoogleStoragePath(expression) {
		client, err = storage.NewClient(ctx)
		if err != nil {
			log.Fatalln(err)
		}
	}

	started := time.Now()
	m, err := dataset.OpenMatrix(ctx, expression, client)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("Read %d genes x %d samples in %s\n", m.NGenes(), m.NSamples(), time.Since(started))

	if samples != "" {
		m, err = restrictSamples(m, samples)
		if err != nil {
			log.Fatalln(err)
		}
		log.Printf("Restricted to %d samples\n", m.NSamples())
	}

	started = time.Now()
	res, err := ssgsea.Score(ctx, m, sig, opts)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("Scored %d samples against %s (%d of %d genes) in %s\n", len(res.Scores), sig.Name, len(res.Genes), len(sig.Genes), time.Since(started))
	if len(res.Dropped) > 0 {
		log.Printf("Genes absent from the expression matrix: %s\n", strings.Join(res.Dropped, ", "))
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	fmt.Fprintln(w, strings.Join([]string{"sample", "es", "nes"}, "\t"))
	for _, s := range res.Scores {
		fmt.Fprintf(w, "%s\t%g\t%g\n", s.Sample, s.ES, s.NES)
	}

	if histogram {
		if err := export.WriteHistogram(os.Stderr, res.NES(), export.HistogramBins); err != nil {
			log.Fatalln(err)
		}
	}
}

// restrictSamples keeps only the listed samples, in the order given. Repeated
// IDs are kept once.
func restrictSamples(m *dataset.Matrix, list string) (*dataset.Matrix, error) {
	ids := signature.ParseList(list)

	keep := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dupe := seen[id]; dupe {
			continue
		}
		seen[id] = struct{}{}
		keep = append(keep, id)
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("no sample IDs in %q", list)
	}

	return m.SubsetSamples(keep)
}
