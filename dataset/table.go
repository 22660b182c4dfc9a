package dataset

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival/survival"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"
)

// NullFloat decodes a numeric cell that may be missing. It accepts "NA",
// "NaN", and other spellings of missing that null.Float rejects.
type NullFloat struct {
	null.Float
}

func (n *NullFloat) UnmarshalCSV(s string) error {
	if IsMissing(s) {
		n.Float = null.Float{}
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	n.Float = null.FloatFrom(v)

	return nil
}

func (n NullFloat) MarshalCSV() (string, error) {
	if !n.Valid {
		return "", nil
	}

	return strconv.FormatFloat(n.Float64, 'g', -1, 64), nil
}

// Phenotype is one row of the phenotype table.
type Phenotype struct {
	Sample    string `csv:"sample"`
	ProjectID string `csv:"project_id"`
}

// SurvivalRow is one row of the survival table. OS is 1 for death and 0 for
// censored; OSTime is in days.
type SurvivalRow struct {
	Sample string    `csv:"sample"`
	OS     NullFloat `csv:"OS"`
	OSTime NullFloat `csv:"OS.time"`
}

// Record converts the row, reporting false when either field is missing or the
// time is negative.
func (s SurvivalRow) Record() (survival.Record, bool) {
	if !s.OS.Valid || !s.OSTime.Valid {
		return survival.Record{}, false
	}

	rec := survival.Record{
		Sample: strings.TrimSpace(s.Sample),
		Time:   s.OSTime.Float64,
		Event:  s.OS.Float64 != 0,
	}

	return rec, rec.Valid()
}

// ReadPhenotypes decodes a delimited phenotype table.
func ReadPhenotypes(r io.Reader, name string) ([]Phenotype, error) {
	out, err := unmarshalPhenotypes(newDelimitedReader(r, name, false))
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %v", name, err))
	}

	return out, nil
}

// ReadSurvivalRows decodes a delimited survival table.
func ReadSurvivalRows(r io.Reader, name string) ([]SurvivalRow, error) {
	out, err := unmarshalSurvivalRows(newDelimitedReader(r, name, false))
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %v", name, err))
	}

	return out, nil
}

// decodePhenotypes decodes string rows, header first.
func decodePhenotypes(rows [][]string) ([]Phenotype, error) {
	return unmarshalPhenotypes(&sliceCSVReader{rows: rows})
}

// decodeSurvivalRows decodes string rows, header first.
func decodeSurvivalRows(rows [][]string) ([]SurvivalRow, error) {
	return unmarshalSurvivalRows(&sliceCSVReader{rows: rows})
}

func unmarshalPhenotypes(in gocsv.CSVReader) ([]Phenotype, error) {
	records := []*Phenotype{}
	if err := gocsv.UnmarshalCSV(in, &records); err != nil {
		return nil, err
	}

	out := make([]Phenotype, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}

	return out, nil
}

func unmarshalSurvivalRows(in gocsv.CSVReader) ([]SurvivalRow, error) {
	records := []*SurvivalRow{}
	if err := gocsv.UnmarshalCSV(in, &records); err != nil {
		return nil, err
	}

	out := make([]SurvivalRow, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}

	return out, nil
}

// SurvivalIndex keys usable survival rows by sample. Rows with missing or
// invalid values are skipped and counted; a repeated sample keeps its first
// row.
func SurvivalIndex(rows []SurvivalRow) (map[string]survival.Record, int) {
	out := make(map[string]survival.Record, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, ok := row.Record()
		if !ok {
			skipped++
			continue
		}
		if _, exists := out[rec.Sample]; exists {
			continue
		}
		out[rec.Sample] = rec
	}

	if skipped > 0 {
		log.Printf("Skipped %d survival rows with missing or invalid OS / OS.time\n", skipped)
	}

	return out, skipped
}

// CancerTypes returns the distinct, sorted project identifiers.
func CancerTypes(phenotypes []Phenotype) []string {
	seen := make(map[string]struct{})
	for _, p := range phenotypes {
		if p.ProjectID == "" {
			continue
		}
		seen[p.ProjectID] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
