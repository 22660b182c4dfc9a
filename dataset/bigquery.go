package dataset

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
	"gopkg.in/guregu/null.v3"
)

// BigQuerySurvival reads the survival table from BigQuery instead of the
// dataset folder. Table is a fully qualified `project.dataset.table` name.
type BigQuerySurvival struct {
	Project string
	Table   string

	// Column names. Empty values fall back to sample, OS and OS_time.
	SampleColumn string
	EventColumn  string
	TimeColumn   string
}

type bqSurvivalRow struct {
	Sample bigquery.NullString  `bigquery:"sample"`
	OS     bigquery.NullFloat64 `bigquery:"os"`
	OSTime bigquery.NullFloat64 `bigquery:"os_time"`
}

func (b BigQuerySurvival) query() string {
	sample, event, t := b.SampleColumn, b.EventColumn, b.TimeColumn
	if sample == "" {
		sample = "sample"
	}
	if event == "" {
		event = "OS"
	}
	if t == "" {
		t = "OS_time"
	}

	return fmt.Sprintf("SELECT CAST(`%s` AS STRING) AS sample, CAST(`%s` AS FLOAT64) AS os, CAST(`%s` AS FLOAT64) AS os_time\nFROM `%s`", sample, event, t, b.Table)
}

func (b BigQuerySurvival) SurvivalRows(ctx context.Context) ([]SurvivalRow, error) {
	client, err := bigquery.NewClient(ctx, b.Project)
	if err != nil {
		return nil, fmt.Errorf("connecting to BigQuery: %v", err)
	}
	defer client.Close()

	itr, err := client.Query(b.query()).Read(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]SurvivalRow, 0)
	for {
		var values bqSurvivalRow

		err := itr.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(err)
		}

		out = append(out, SurvivalRow{
			Sample: values.Sample.StringVal,
			OS:     NullFloat{null.NewFloat(values.OS.Float64, values.OS.Valid)},
			OSTime: NullFloat{null.NewFloat(values.OSTime.Float64, values.OSTime.Valid)},
		})
	}

	log.Println("Read", len(out), "survival rows from BigQuery table", b.Table)

	return out, nil
}
