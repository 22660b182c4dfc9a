package sigvival

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// DetermineDelimiterFromSample is like DetermineDelimiter, but consults the file
// name first. Files named .tsv or .csv (optionally compressed) are trusted;
// anything else is sniffed.
func DetermineDelimiterFromSample(name string, sample []byte) rune {
	base := strings.ToLower(path.Base(name))
	for _, ext := range CompressionExtensions {
		base = strings.TrimSuffix(base, ext)
	}

	switch path.Ext(base) {
	case ".tsv", ".tab":
		return '\t'
	case ".csv":
		return ','
	}

	// The detector is confused by wide numeric matrices where the only
	// candidate is a tab, so give it only the header line when we can.
	if i := bytes.IndexByte(sample, '\n'); i > 0 {
		if bytes.Count(sample[:i], []byte{'\t'}) > 0 && bytes.Count(sample[:i], []byte{','}) == 0 {
			return '\t'
		}
	}

	return DetermineDelimiter(bytes.NewReader(sample))
}
