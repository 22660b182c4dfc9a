package pipeline

import (
	"image"
	"io"
	"time"

	"github.com/carbocation/sigvival/dataset"
	"github.com/carbocation/sigvival/export"
	"github.com/carbocation/sigvival/kmplot"
	"github.com/carbocation/sigvival/stratify"
	"gopkg.in/guregu/null.v3"
)

// Title is the plot title for the result.
func (r *Result) Title() string {
	return kmplot.Title(r.Signature.Name, r.Comparison)
}

// Plot renders the Kaplan-Meier comparison. An empty opts.Title is replaced by
// the standard title.
func (r *Result) Plot(opts kmplot.Options) (image.Image, error) {
	if opts.Title == "" {
		opts.Title = r.Title()
	}

	return kmplot.Render(r.Comparison, opts)
}

// GroupRows joins every scored sample's group with its survival data, in
// sample order.
func (r *Result) GroupRows() []export.GroupRow {
	out := make([]export.GroupRow, 0, len(r.Strata.Assignments))
	for _, a := range r.Strata.Assignments {
		row := export.GroupRow{
			Sample: a.Sample,
			NES:    a.Score,
			Group:  r.Strata.Label(a.Group),
		}
		if a.Group == stratify.Excluded {
			row.Group = "Excluded"
		}

		if rec, ok := r.Survival[a.Sample]; ok {
			event := 0.0
			if rec.Event {
				event = 1
			}
			row.OSTime = dataset.NullFloat{Float: null.FloatFrom(rec.Time)}
			row.OS = dataset.NullFloat{Float: null.FloatFrom(event)}
			row.Included = true
		}

		out = append(out, row)
	}

	return out
}

// ScoreRow is a JSON-safe sample score.
type ScoreRow struct {
	Sample string `json:"sample"`
	ES     Number `json:"es"`
	NES    Number `json:"nes"`
}

// Report is the complete JSON response for one analysis.
type Report struct {
	Summary
	Title       string            `json:"title"`
	Scores      []ScoreRow        `json:"scores"`
	Assignments []export.GroupRow `json:"assignments"`
}

func (r *Result) Report() Report {
	out := Report{
		Summary:     r.Summary(),
		Title:       r.Title(),
		Scores:      make([]ScoreRow, 0, len(r.Scores.Scores)),
		Assignments: r.GroupRows(),
	}
	for _, s := range r.Scores.Scores {
		out.Scores = append(out.Scores, ScoreRow{Sample: s.Sample, ES: Number(s.ES), NES: Number(s.NES)})
	}

	return out
}

// WriteArchive renders the plot at full resolution and writes the export
// archive to w.
func (r *Result) WriteArchive(w io.Writer, now time.Time) error {
	img, err := r.Plot(kmplot.DefaultOptions())
	if err != nil {
		return err
	}

	return export.Write(w, export.Bundle{
		Scores:  r.Scores.Scores,
		Groups:  r.GroupRows(),
		Summary: r.Summary(),
		Plot:    img,
	}, now)
}
