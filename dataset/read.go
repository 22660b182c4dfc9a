package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival"
)

// sniffBytes is how much of a file is inspected to guess its delimiter
const sniffBytes = 64 * 1024

// IsMissing reports whether a cell denotes a missing value.
func IsMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "nan", "null", "none":
		return true
	}

	return false
}

// newDelimitedReader returns a csv.Reader over r using the delimiter implied by
// the file name, or sniffed from its first bytes. reuse must be false when the
// caller keeps rows between reads.
func newDelimitedReader(r io.Reader, name string, reuse bool) *csv.Reader {
	br := bufio.NewReaderSize(r, sigvival.BufferSize)
	sample, _ := br.Peek(sniffBytes)
	delim := sigvival.DetermineDelimiterFromSample(name, sample)

	fileCSV := csv.NewReader(br)
	fileCSV.Comma = delim
	fileCSV.LazyQuotes = true
	fileCSV.ReuseRecord = reuse

	return fileCSV
}

// ReadMatrix parses a delimited expression matrix: a header row whose first
// cell names the gene column followed by sample identifiers, then one row per
// gene. Missing cells become NaN.
func ReadMatrix(r io.Reader, name string) (*Matrix, error) {
	fileCSV := newDelimitedReader(r, name, true)

	header, err := fileCSV.Read()
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: header parsing error: %v", name, err))
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%s: expected a gene column and at least one sample column, found %d columns", name, len(header))
	}

	samples := make([]string, len(header)-1)
	for j, s := range header[1:] {
		samples[j] = strings.TrimSpace(s)
	}
	columns := make([][]float64, len(samples))

	genes := make([]string, 0)
	seen := make(map[string]struct{})
	dupes := 0

	for line := 2; ; line++ {
		row, err := fileCSV.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s line %d: %v", name, line, err))
		}

		gene := strings.TrimSpace(row[0])
		if _, exists := seen[gene]; exists {
			dupes++
			continue
		}
		seen[gene] = struct{}{}

		for j, cell := range row[1:] {
			v := math.NaN()
			if !IsMissing(cell) {
				v, err = strconv.ParseFloat(strings.TrimSpace(cell), 64)
				if err != nil {
					return nil, fmt.Errorf("%s line %d, sample %s: %v", name, line, samples[j], err)
				}
			}
			columns[j] = append(columns[j], v)
		}
		genes = append(genes, gene)
	}

	if dupes > 0 {
		log.Printf("%s: kept the first of %d duplicated gene rows\n", name, dupes)
	}

	return NewMatrix(genes, samples, columns)
}

// sliceCSVReader serves rows from memory to gocsv, so that tables read from
// Parquet decode through the same struct tags as delimited files.
type sliceCSVReader struct {
	rows [][]string
	pos  int
}

func (s *sliceCSVReader) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	s.pos++
	return s.rows[s.pos-1], nil
}

func (s *sliceCSVReader) ReadAll() ([][]string, error) {
	out := s.rows[s.pos:]
	s.pos = len(s.rows)
	return out, nil
}
