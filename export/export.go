// Package export packages the results of one analysis as a zip archive.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/pfx"
	"github.com/carbocation/sigvival/dataset"
	"github.com/carbocation/sigvival/ssgsea"
	"github.com/gocarina/gocsv"
)

// TimestampFormat names every file in an archive
const TimestampFormat = "2006-01-02_15-04-05"

// HistogramBins is the number of buckets in the score histogram
const HistogramBins = 20

// GroupRow is one sample's group assignment joined with its survival data.
// Included is false for samples left out of the survival estimate, either
// because their group was dropped or their survival data is missing.
type GroupRow struct {
	Sample   string            `csv:"sample" json:"sample"`
	NES      float64           `csv:"nes" json:"nes"`
	Group    string            `csv:"group" json:"group"`
	OSTime   dataset.NullFloat `csv:"os_time" json:"os_time"`
	OS       dataset.NullFloat `csv:"os" json:"os"`
	Included bool              `csv:"included" json:"included"`
}

// Bundle is everything written to an archive. Summary must encode as JSON.
type Bundle struct {
	Scores  []ssgsea.SampleScore
	Groups  []GroupRow
	Summary interface{}
	Plot    image.Image
}

func Timestamp(now time.Time) string {
	return now.Format(TimestampFormat)
}

// Filename is the download name of an archive created at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("sigvival_%s.zip", Timestamp(now))
}

// Entries lists the files Write creates, in order.
func Entries(now time.Time) []string {
	ts := Timestamp(now)
	return []string{
		"ssgsea_scores_" + ts + ".csv",
		"groups_" + ts + ".csv",
		"km_summary_" + ts + ".json",
		"score_histogram_" + ts + ".txt",
		"km_plot_" + ts + ".png",
	}
}

// Write streams the archive to w. A nil Plot omits the image.
func Write(w io.Writer, b Bundle, now time.Time) error {
	zw := zip.NewWriter(w)
	names := Entries(now)

	writers := []func(io.Writer) error{
		func(w io.Writer) error { return gocsv.Marshal(b.Scores, w) },
		func(w io.Writer) error { return gocsv.Marshal(b.Groups, w) },
		func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(b.Summary)
		},
		func(w io.Writer) error { return WriteHistogram(w, nesValues(b.Scores), HistogramBins) },
		func(w io.Writer) error { return png.Encode(w, b.Plot) },
	}

	for i, name := range names {
		if i == len(names)-1 && b.Plot == nil {
			continue
		}

		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return pfx.Err(err)
		}

		if err := writers[i](fw); err != nil {
			return pfx.Err(fmt.Errorf("%s: %v", name, err))
		}
	}

	if err := zw.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func nesValues(scores []ssgsea.SampleScore) []float64 {
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		if math.IsNaN(s.NES) || math.IsInf(s.NES, 0) {
			continue
		}
		out = append(out, s.NES)
	}

	return out
}

// WriteHistogram prints an ASCII histogram of values.
func WriteHistogram(w io.Writer, values []float64, bins int) error {
	if len(values) == 0 {
		_, err := fmt.Fprintln(w, "no scores")
		return err
	}

	hist := histogram.Hist(bins, values)

	return histogram.Fprint(w, hist, histogram.Linear(40))
}
