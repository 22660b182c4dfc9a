package dataset

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/BenLubar/memoize"
	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival"
	"github.com/carbocation/sigvival/survival"
)

// Layout names the files that make up a dataset folder.
type Layout struct {
	// Expression files are named ExpressionPrefix + cancer type, optionally
	// followed by _1, _2, ... when one cancer type is split across files.
	ExpressionPrefix string

	// Base names (without extension) of the phenotype and survival tables
	PhenotypeName string
	SurvivalName  string
}

// DefaultLayout matches the file names of the TCGA Pan-Cancer (GDC-PANCAN)
// exports from UCSC Xena.
func DefaultLayout() Layout {
	return Layout{
		ExpressionPrefix: "GDC-PANCAN.htseq_fpkm-uq_",
		PhenotypeName:    "GDC-PANCAN.basic_phenotype_processed",
		SurvivalName:     "GDC-PANCAN.survival_processed",
	}
}

// TableExtensions are the recognized dataset file suffixes.
var TableExtensions = []string{
	".parquet",
	".tsv", ".tsv.gz", ".tsv.bz2", ".tsv.xz", ".tsv.zip",
	".csv", ".csv.gz", ".csv.bz2", ".csv.xz", ".csv.zip",
	".txt", ".txt.gz",
}

// SurvivalSource supplies survival rows from somewhere other than the dataset
// folder.
type SurvivalSource interface {
	SurvivalRows(ctx context.Context) ([]SurvivalRow, error)
}

// Store is a read-through cache over a dataset folder. Each table is loaded
// the first time it is requested and served from memory afterwards; the
// backing files are assumed not to change while the process runs. Store is
// safe for concurrent use and everything it returns must be treated as
// read-only.
type Store struct {
	Root   string
	Layout Layout

	// Client is required when Root is a gs:// URL.
	Client *storage.Client

	// Survival, if set, replaces the survival table in Root.
	Survival SurvivalSource

	mu sync.RWMutex
	c  *cache
}

// cache holds the memoized loaders. Replacing it drops every cached table.
type cache struct {
	files      func(string) ([]string, error)
	expression func(string) (*Matrix, error)
	phenotypes func(string) ([]Phenotype, error)
	survival   func(string) (map[string]survival.Record, error)
}

func NewStore(root string, layout Layout, client *storage.Client) *Store {
	s := &Store{Root: root, Layout: layout, Client: client}
	s.c = s.newCache()
	return s
}

func (s *Store) newCache() *cache {
	return &cache{
		files:      memoize.Memoize(s.loadFiles).(func(string) ([]string, error)),
		expression: memoize.Memoize(s.loadExpression).(func(string) (*Matrix, error)),
		phenotypes: memoize.Memoize(s.loadPhenotypes).(func(string) ([]Phenotype, error)),
		survival:   memoize.Memoize(s.loadSurvival).(func(string) (map[string]survival.Record, error)),
	}
}

func (s *Store) cached() *cache {
	s.mu.RLock()
	c := s.c
	s.mu.RUnlock()
	if c != nil {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		s.c = s.newCache()
	}

	return s.c
}

// Reload discards every cached table. Requests already holding a table keep
// their copy; later requests read from disk again.
func (s *Store) Reload() {
	s.mu.Lock()
	s.c = s.newCache()
	s.mu.Unlock()

	log.Println("Dataset cache cleared for", s.Root)
}

// Expression returns the expression matrix for the given cancer types,
// concatenated by sample. A cancer type without an expression file fails with
// ErrDatasetUnavailable.
func (s *Store) Expression(ctx context.Context, cancerTypes []string) (*Matrix, error) {
	if len(cancerTypes) == 0 {
		return nil, fmt.Errorf("no cancer types requested: %w", sigvival.ErrInvalidRequest)
	}

	c := s.cached()
	seen := make(map[string]struct{})
	parts := make([]*Matrix, 0, len(cancerTypes))
	for _, ct := range cancerTypes {
		if _, dupe := seen[ct]; dupe {
			continue
		}
		seen[ct] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := c.expression(ct)
		if err != nil {
			return nil, err
		}
		parts = append(parts, m)
	}

	return Concat(parts...)
}

// Phenotypes returns the phenotype table.
func (s *Store) Phenotypes(ctx context.Context) ([]Phenotype, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.cached().phenotypes(s.Layout.PhenotypeName)
}

// SurvivalRecords returns usable survival records keyed by sample.
func (s *Store) SurvivalRecords(ctx context.Context) (map[string]survival.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.cached().survival(s.Layout.SurvivalName)
}

// CancerTypes lists the cancer types named in the phenotype table. If there is
// no phenotype table, the cancer types with expression files are listed.
func (s *Store) CancerTypes(ctx context.Context) ([]string, error) {
	phenotypes, err := s.Phenotypes(ctx)
	if err == nil {
		return CancerTypes(phenotypes), nil
	}

	log.Println("Falling back to expression file names for the cancer type list:", err)

	return s.AvailableCancerTypes(ctx)
}

// AvailableCancerTypes lists the cancer types that have expression files.
func (s *Store) AvailableCancerTypes(ctx context.Context) ([]string, error) {
	files, err := s.cached().files(s.Root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, f := range files {
		if !strings.HasPrefix(f, s.Layout.ExpressionPrefix) {
			continue
		}
		ct, _, ok := splitPartName(strings.TrimPrefix(f, s.Layout.ExpressionPrefix))
		if !ok {
			continue
		}
		seen[ct] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for ct := range seen {
		out = append(out, ct)
	}
	sort.Strings(out)

	return out, nil
}

// GeneNames lists the genes of the first available cancer type's expression
// matrix. All cancer types in a dataset share the same gene rows.
func (s *Store) GeneNames(ctx context.Context) ([]string, error) {
	types, err := s.AvailableCancerTypes(ctx)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no expression files under %s: %w", s.Root, sigvival.ErrDatasetUnavailable)
	}

	m, err := s.Expression(ctx, types[:1])
	if err != nil {
		return nil, err
	}

	return m.GeneNames(), nil
}

// splitPartName splits "TCGA-BRCA_2.tsv.gz" into ("TCGA-BRCA", 2, true) and
// "TCGA-CHOL.parquet" into ("TCGA-CHOL", 0, true).
func splitPartName(rest string) (cancerType string, part int, ok bool) {
	stem, ok := trimTableExtension(rest)
	if !ok {
		return "", 0, false
	}

	if i := strings.LastIndex(stem, "_"); i > 0 {
		if n, err := strconv.Atoi(stem[i+1:]); err == nil {
			return stem[:i], n, true
		}
	}

	return stem, 0, true
}

func trimTableExtension(name string) (string, bool) {
	lower := strings.ToLower(name)

	// Longest match first so that .tsv.gz isn't read as .tsv
	best := ""
	for _, ext := range TableExtensions {
		if strings.HasSuffix(lower, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	if best == "" {
		return name, false
	}

	return name[:len(name)-len(best)], true
}

func (s *Store) loadFiles(root string) ([]string, error) {
	return sigvival.ListFiles(context.Background(), root, s.Client)
}

// findTable returns the first file whose name is base plus a table extension.
func (s *Store) findTable(base string) (string, error) {
	files, err := s.cached().files(s.Root)
	if err != nil {
		return "", err
	}

	for _, f := range files {
		if stem, ok := trimTableExtension(f); ok && stem == base {
			return f, nil
		}
	}

	return "", fmt.Errorf("no file named %s.* under %s: %w", base, s.Root, sigvival.ErrDatasetUnavailable)
}

func (s *Store) loadExpression(cancerType string) (*Matrix, error) {
	files, err := s.cached().files(s.Root)
	if err != nil {
		return nil, err
	}

	type part struct {
		name string
		n    int
	}
	parts := make([]part, 0)
	for _, f := range files {
		if !strings.HasPrefix(f, s.Layout.ExpressionPrefix) {
			continue
		}
		ct, n, ok := splitPartName(strings.TrimPrefix(f, s.Layout.ExpressionPrefix))
		if !ok || ct != cancerType {
			continue
		}
		parts = append(parts, part{name: f, n: n})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no expression data for %s: %w", cancerType, sigvival.ErrDatasetUnavailable)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	started := time.Now()
	matrices := make([]*Matrix, 0, len(parts))
	for _, p := range parts {
		m, err := s.readMatrix(p.name)
		if err != nil {
			return nil, err
		}
		matrices = append(matrices, m)
	}

	out, err := Concat(matrices...)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %v", cancerType, err))
	}

	log.Printf("Loaded %s from %d file(s): %d genes x %d samples in %s\n", cancerType, len(parts), out.NGenes(), out.NSamples(), time.Since(started))

	return out, nil
}

func (s *Store) readMatrix(name string) (*Matrix, error) {
	return OpenMatrix(context.Background(), sigvival.JoinPath(s.Root, name), s.Client)
}

// OpenMatrix reads an expression matrix from a local or gs:// path. Delimited
// files may be compressed; parquet files must be local. client may be nil for
// local paths.
func OpenMatrix(ctx context.Context, full string, client *storage.Client) (*Matrix, error) {
	if strings.HasSuffix(strings.ToLower(full), ".parquet") {
		if sigvival.IsGoogleStoragePath(full) {
			return nil, fmt.Errorf("%s: parquet files must be local", full)
		}
		return ReadParquetMatrix(full)
	}

	var out *Matrix
	err := withFile(ctx, full, client, func(r io.Reader) error {
		var err error
		out, err = ReadMatrix(r, path.Base(full))
		return err
	})

	return out, err
}

func (s *Store) withFile(full string, fn func(io.Reader) error) error {
	return withFile(context.Background(), full, s.Client, fn)
}

// withFile opens a possibly compressed local or Google Storage file and hands
// it to fn.
func withFile(ctx context.Context, full string, client *storage.Client, fn func(io.Reader) error) error {
	rc, err := sigvival.MaybeOpenFromGoogleStorage(ctx, full, client)
	if err != nil {
		return pfx.Err(err)
	}
	defer rc.Close()

	src, err := sigvival.MaybeDecompressReadCloser(rc)
	if err != nil {
		return pfx.Err(fmt.Errorf("%s: %v", full, err))
	}
	defer src.Close()

	return fn(src)
}

func (s *Store) loadPhenotypes(base string) ([]Phenotype, error) {
	name, err := s.findTable(base)
	if err != nil {
		return nil, err
	}
	full := sigvival.JoinPath(s.Root, name)

	if strings.HasSuffix(strings.ToLower(name), ".parquet") {
		rows, err := readParquetStrings(full)
		if err != nil {
			return nil, err
		}
		return decodePhenotypes(rows)
	}

	var out []Phenotype
	err = s.withFile(full, func(r io.Reader) error {
		var err error
		out, err = ReadPhenotypes(r, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Loaded %d phenotype rows from %s\n", len(out), path.Base(name))

	return out, nil
}

func (s *Store) loadSurvival(base string) (map[string]survival.Record, error) {
	var rows []SurvivalRow

	if s.Survival != nil {
		var err error
		rows, err = s.Survival.SurvivalRows(context.Background())
		if err != nil {
			return nil, err
		}
	} else {
		name, err := s.findTable(base)
		if err != nil {
			return nil, err
		}
		full := sigvival.JoinPath(s.Root, name)

		if strings.HasSuffix(strings.ToLower(name), ".parquet") {
			strs, err := readParquetStrings(full)
			if err != nil {
				return nil, err
			}
			if rows, err = decodeSurvivalRows(strs); err != nil {
				return nil, err
			}
		} else {
			err = s.withFile(full, func(r io.Reader) error {
				var err error
				rows, err = ReadSurvivalRows(r, name)
				return err
			})
			if err != nil {
				return nil, err
			}
		}
	}

	out, _ := SurvivalIndex(rows)
	log.Printf("Loaded survival data for %d samples\n", len(out))

	return out, nil
}
