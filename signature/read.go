package signature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival"
	"github.com/extrame/xls"
)

// ReadFile reads a signature from a .gmt, .grp, .txt, or .xls file, chosen by
// extension. name is used as the signature name, and for .gmt files selects
// the set of that name if one exists.
func ReadFile(path, name string) (Signature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls":
		return ReadXLS(path, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return Signature{}, pfx.Err(err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path), name)
}

// Read reads a signature from r. filename is consulted only for its extension.
func Read(r io.Reader, filename, name string) (Signature, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gmt":
		return ReadGMT(r, name)
	case ".xls":
		return readXLSStream(r, name)
	}

	return ReadGRP(r, name)
}

// readXLSStream spools an uploaded spreadsheet to a temporary file, since the
// xls reader needs to seek.
func readXLSStream(r io.Reader, name string) (Signature, error) {
	f, err := os.CreateTemp("", "sigvival-*.xls")
	if err != nil {
		return Signature{}, pfx.Err(err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return Signature{}, pfx.Err(err)
	}
	if err := f.Close(); err != nil {
		return Signature{}, pfx.Err(err)
	}

	return ReadXLS(f.Name(), name)
}

// ReadGMT reads the Gene Matrix Transposed format: one set per line, tab
// delimited, with the set name, a description, and then the genes. If a set is
// named name it is returned; otherwise the first set is returned under its own
// name unless name is non-empty.
func ReadGMT(r io.Reader, name string) (Signature, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var first []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) < 3 {
			return Signature{}, fmt.Errorf("GMT line for %q has %d columns, expected at least 3: %w", cols[0], len(cols), sigvival.ErrInvalidSignature)
		}

		if name != "" && strings.EqualFold(cols[0], name) {
			return New(cols[0], cols[2:])
		}
		if first == nil {
			first = cols
		}
	}
	if err := scanner.Err(); err != nil {
		return Signature{}, pfx.Err(err)
	}

	if first == nil {
		return Signature{}, fmt.Errorf("GMT file contains no gene sets: %w", sigvival.ErrInvalidSignature)
	}

	if name == "" {
		name = first[0]
	}

	return New(name, first[2:])
}

// ReadGRP reads one gene per line. Lines starting with # are comments, and
// lines may also hold comma or whitespace separated genes.
func ReadGRP(r io.Reader, name string) (Signature, error) {
	scanner := bufio.NewScanner(r)

	genes := make([]string, 0)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		genes = append(genes, ParseList(line)...)
	}
	if err := scanner.Err(); err != nil {
		return Signature{}, pfx.Err(err)
	}

	return New(name, genes)
}

// ReadXLS reads genes from the first column of the first sheet of a legacy
// Excel workbook. A header cell of "gene", "genes", or "symbol" is skipped.
func ReadXLS(path, name string) (Signature, error) {
	spreadsheet, err := xls.Open(path, "utf-8")
	if err != nil {
		return Signature{}, pfx.Err(err)
	}

	if spreadsheet.NumSheets() < 1 {
		return Signature{}, fmt.Errorf("%s has no sheets: %w", path, sigvival.ErrInvalidSignature)
	}

	sheet := spreadsheet.GetSheet(0)
	if sheet == nil {
		return Signature{}, fmt.Errorf("%s: sheet 0 was nil: %w", path, sigvival.ErrInvalidSignature)
	}

	genes := make([]string, 0)
	for rowID := 0; rowID <= int(sheet.MaxRow); rowID++ {
		row := sheet.Row(rowID)
		if row == nil || row.LastCol() < 0 {
			continue
		}

		value := strings.TrimSpace(row.Col(0))
		if rowID == 0 {
			switch strings.ToLower(value) {
			case "gene", "genes", "symbol":
				continue
			}
		}
		genes = append(genes, value)
	}

	return New(name, genes)
}
