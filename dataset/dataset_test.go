package dataset

import (
	"compress/gzip"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/sigvival"
)

const chol = "gene\tTCGA-01\tTCGA-02\tTCGA-03\n" +
	"TP53\t1.5\t2\tNA\n" +
	"EGFR\t0\t3.25\t1\n" +
	"MYC\t7\t\t2\n"

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if strings.HasSuffix(name, ".gz") {
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		zw := gzip.NewWriter(f)
		if _, err := zw.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
		return
	}

	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadMatrix(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(chol), "x.tsv")
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if m.NGenes() != 3 || m.NSamples() != 3 {
		t.Fatalf("got %d genes x %d samples, expected 3 x 3", m.NGenes(), m.NSamples())
	}

	cases := []struct {
		Gene     string
		Sample   string
		Expected float64
	}{
		{"TP53", "TCGA-01", 1.5},
		{"EGFR", "TCGA-02", 3.25},
		{"MYC", "TCGA-03", 2},
	}
	for _, cs := range cases {
		i, _ := m.GeneIndex(cs.Gene)
		j, _ := m.SampleIndex(cs.Sample)
		if v := m.Column(j)[i]; v != cs.Expected {
			t.Errorf("%s/%s: got %v, expected %v", cs.Gene, cs.Sample, v, cs.Expected)
		}
	}

	for _, missing := range [][2]string{{"TP53", "TCGA-03"}, {"MYC", "TCGA-02"}} {
		i, _ := m.GeneIndex(missing[0])
		j, _ := m.SampleIndex(missing[1])
		if v := m.Column(j)[i]; !math.IsNaN(v) {
			t.Errorf("%s/%s: got %v, expected NaN", missing[0], missing[1], v)
		}
	}
}

func TestReadMatrixCSVAndDuplicates(t *testing.T) {
	input := "Ensembl_ID,S1,S2\nA,1,2\nB,3,4\nA,9,9\n"
	m, err := ReadMatrix(strings.NewReader(input), "x.csv")
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if m.NGenes() != 2 {
		t.Fatalf("got %d genes, expected the duplicate to be dropped", m.NGenes())
	}
	if v := m.Column(1)[0]; v != 2 {
		t.Fatalf("got %v, expected the first A row to be kept", v)
	}
}

func TestReadMatrixErrors(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"one column": "gene\nA\n",
		"garbage":    "gene\tS1\nA\tnot-a-number\n",
		"ragged":     "gene\tS1\tS2\nA\t1\n",
	}

	for name, input := range cases {
		if _, err := ReadMatrix(strings.NewReader(input), "x.tsv"); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestConcat(t *testing.T) {
	a, err := NewMatrix([]string{"A", "B", "C"}, []string{"s1"}, [][]float64{{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewMatrix([]string{"C", "A"}, []string{"s2", "s3"}, [][]float64{{30, 10}, {31, 11}})
	if err != nil {
		t.Fatal(err)
	}

	m, err := Concat(a, b)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if got := strings.Join(m.GeneNames(), ","); got != "A,C" {
		t.Fatalf("got genes %s, expected A,C", got)
	}
	if got := strings.Join(m.SampleNames(), ","); got != "s1,s2,s3" {
		t.Fatalf("got samples %s", got)
	}
	if col := m.Column(2); col[0] != 11 || col[1] != 31 {
		t.Fatalf("got column %v for s3, expected [11 31]", col)
	}

	if _, err := Concat(a, a); err == nil {
		t.Fatalf("expected duplicate samples to be rejected")
	}
}

func TestSubsetSamples(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(chol), "x.tsv")
	if err != nil {
		t.Fatal(err)
	}

	sub, err := m.SubsetSamples([]string{"TCGA-03", "TCGA-01"})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if sub.NSamples() != 2 || sub.SampleNames()[0] != "TCGA-03" {
		t.Fatalf("unexpected samples %v", sub.SampleNames())
	}

	if _, err := m.SubsetSamples([]string{"nobody"}); err == nil {
		t.Fatalf("expected an unknown sample to be an error")
	}
}

func TestSurvivalTable(t *testing.T) {
	input := "sample\tOS\tOS.time\t_PATIENT\n" +
		"TCGA-01\t1\t100\tP1\n" +
		"TCGA-02\t0\t250.5\tP2\n" +
		"TCGA-03\tNA\t30\tP3\n" +
		"TCGA-04\t1\t\tP4\n" +
		"TCGA-01\t0\t999\tP1\n"

	rows, err := ReadSurvivalRows(strings.NewReader(input), "survival.tsv")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, expected 5", len(rows))
	}

	index, skipped := SurvivalIndex(rows)
	if skipped != 2 {
		t.Errorf("got %d skipped rows, expected 2", skipped)
	}
	if len(index) != 2 {
		t.Fatalf("got %d usable records, expected 2", len(index))
	}

	if rec := index["TCGA-01"]; !rec.Event || rec.Time != 100 {
		t.Errorf("got %+v for TCGA-01, expected the first row", rec)
	}
	if rec := index["TCGA-02"]; rec.Event || rec.Time != 250.5 {
		t.Errorf("got %+v for TCGA-02", rec)
	}
}

func TestPhenotypesAndCancerTypes(t *testing.T) {
	input := "sample,project_id,sample_type\n" +
		"TCGA-01,TCGA-CHOL,Primary Tumor\n" +
		"TCGA-02,TCGA-BRCA,Primary Tumor\n" +
		"TCGA-03,TCGA-CHOL,Normal\n" +
		"TCGA-04,,Normal\n"

	phenos, err := ReadPhenotypes(strings.NewReader(input), "pheno.csv")
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if got := strings.Join(CancerTypes(phenos), ","); got != "TCGA-BRCA,TCGA-CHOL" {
		t.Fatalf("got %s", got)
	}
}

func TestSplitPartName(t *testing.T) {
	cases := []struct {
		Name string
		Type string
		Part int
		OK   bool
	}{
		{"TCGA-CHOL.tsv", "TCGA-CHOL", 0, true},
		{"TCGA-BRCA_2.tsv.gz", "TCGA-BRCA", 2, true},
		{"TCGA-BRCA_1.parquet", "TCGA-BRCA", 1, true},
		{"TCGA-LAML_x.csv", "TCGA-LAML_x", 0, true},
		{"TCGA-CHOL.json", "", 0, false},
	}

	for _, cs := range cases {
		ct, part, ok := splitPartName(cs.Name)
		if ct != cs.Type || part != cs.Part || ok != cs.OK {
			t.Errorf("%s: got (%q, %d, %v), expected (%q, %d, %v)", cs.Name, ct, part, ok, cs.Type, cs.Part, cs.OK)
		}
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	layout := DefaultLayout()

	writeFile(t, dir, layout.ExpressionPrefix+"TCGA-CHOL.tsv", chol)
	writeFile(t, dir, layout.ExpressionPrefix+"TCGA-BRCA_2.tsv.gz", "gene\tB3\nTP53\t3\nMYC\t4\n")
	writeFile(t, dir, layout.ExpressionPrefix+"TCGA-BRCA_1.tsv", "gene\tB1\tB2\nTP53\t1\t2\nEGFR\t5\t6\nMYC\t7\t8\n")
	writeFile(t, dir, layout.PhenotypeName+".tsv", "sample\tproject_id\nTCGA-01\tTCGA-CHOL\nB1\tTCGA-BRCA\nX\tTCGA-LAML\n")
	writeFile(t, dir, layout.SurvivalName+".tsv.gz", "sample\tOS\tOS.time\nTCGA-01\t1\t10\nTCGA-02\t0\t20\nB1\t1\t5\n")
	writeFile(t, dir, "README.md", "not a table")

	return NewStore(dir, layout, nil)
}

func TestStoreExpression(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brca, err := s.Expression(ctx, []string{"TCGA-BRCA"})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got := strings.Join(brca.SampleNames(), ","); got != "B1,B2,B3" {
		t.Fatalf("got samples %s, expected the parts in order", got)
	}
	if got := strings.Join(brca.GeneNames(), ","); got != "TP53,MYC" {
		t.Fatalf("got genes %s, expected the shared genes", got)
	}

	both, err := s.Expression(ctx, []string{"TCGA-CHOL", "TCGA-BRCA", "TCGA-CHOL"})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if both.NSamples() != 6 {
		t.Fatalf("got %d samples, expected 6", both.NSamples())
	}

	again, err := s.Expression(ctx, []string{"TCGA-BRCA"})
	if err != nil {
		t.Fatal(err)
	}
	if again != brca {
		t.Errorf("expected the cached matrix to be returned")
	}
}

func TestStoreUnavailable(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Expression(context.Background(), []string{"TCGA-LAML"})
	if !errors.Is(err, sigvival.ErrDatasetUnavailable) {
		t.Fatalf("got %v, expected ErrDatasetUnavailable", err)
	}

	_, err = s.Expression(context.Background(), nil)
	if !errors.Is(err, sigvival.ErrInvalidRequest) {
		t.Fatalf("got %v, expected ErrInvalidRequest", err)
	}
}

func TestStoreTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	types, err := s.CancerTypes(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got := strings.Join(types, ","); got != "TCGA-BRCA,TCGA-CHOL,TCGA-LAML" {
		t.Fatalf("got %s", got)
	}

	available, err := s.AvailableCancerTypes(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got := strings.Join(available, ","); got != "TCGA-BRCA,TCGA-CHOL" {
		t.Fatalf("got %s", got)
	}

	recs, err := s.SurvivalRecords(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(recs) != 3 || !recs["B1"].Event || recs["TCGA-02"].Time != 20 {
		t.Fatalf("unexpected survival records %+v", recs)
	}

	genes, err := s.GeneNames(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(genes) != 2 {
		t.Fatalf("got %v, expected the BRCA genes", genes)
	}
}

func TestStoreReload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before, err := s.AvailableCancerTypes(ctx)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, s.Root, s.Layout.ExpressionPrefix+"TCGA-LAML.csv", "gene,L1\nTP53,1\n")

	cached, _ := s.AvailableCancerTypes(ctx)
	if len(cached) != len(before) {
		t.Fatalf("expected the file listing to be cached")
	}

	s.Reload()

	after, err := s.AvailableCancerTypes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("got %v after reload, expected TCGA-LAML to appear", after)
	}
}

type fakeSurvival []SurvivalRow

func (f fakeSurvival) SurvivalRows(ctx context.Context) ([]SurvivalRow, error) { return f, nil }

func TestStoreSurvivalSource(t *testing.T) {
	s := newTestStore(t)

	row := SurvivalRow{Sample: "Z"}
	row.OS.UnmarshalCSV("1")
	row.OSTime.UnmarshalCSV("42")
	s.Survival = fakeSurvival{row}
	s.Reload()

	recs, err := s.SurvivalRecords(context.Background())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(recs) != 1 || recs["Z"].Time != 42 {
		t.Fatalf("got %+v, expected the source rows", recs)
	}
}

func TestBigQuerySurvivalQuery(t *testing.T) {
	q := BigQuerySurvival{Table: "proj.tcga.survival"}.query()
	for _, want := range []string{"`sample`", "`OS`", "`OS_time`", "`proj.tcga.survival`"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q does not contain %s", q, want)
		}
	}
}
