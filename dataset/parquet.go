package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"
)

// pandasIndexColumn is where pyarrow stores an unnamed pandas index
const pandasIndexColumn = "__index_level_0__"

// readParquetTable reads every row of a local Parquet file through DuckDB,
// returning the column names and the rows. Any column may be NULL.
func readParquetTable(path string) ([]string, [][]interface{}, error) {
	db, err := sqlx.Open("duckdb", "")
	if err != nil {
		return nil, nil, pfx.Err(err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT * FROM read_parquet('%s')", strings.ReplaceAll(path, "'", "''"))
	rows, err := db.Queryx(query)
	if err != nil {
		return nil, nil, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, pfx.Err(err)
	}

	out := make([][]interface{}, 0)
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, nil, pfx.Err(fmt.Errorf("%s: %v", path, err))
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, pfx.Err(err)
	}

	return columns, out, nil
}

// ReadParquetMatrix reads an expression matrix saved from a pandas DataFrame
// with genes as the index. The gene column is the pandas index column if one
// was written, and the first column otherwise.
func ReadParquetMatrix(path string) (*Matrix, error) {
	columns, rows, err := readParquetTable(path)
	if err != nil {
		return nil, err
	}

	geneCol := 0
	for i, c := range columns {
		if c == pandasIndexColumn {
			geneCol = i
			break
		}
	}

	samples := make([]string, 0, len(columns)-1)
	sampleCols := make([]int, 0, len(columns)-1)
	for i, c := range columns {
		if i == geneCol {
			continue
		}
		samples = append(samples, c)
		sampleCols = append(sampleCols, i)
	}

	genes := make([]string, 0, len(rows))
	values := make([][]float64, len(samples))
	seen := make(map[string]struct{}, len(rows))
	for rowID, row := range rows {
		gene := cellString(row[geneCol])
		if _, exists := seen[gene]; exists {
			continue
		}
		seen[gene] = struct{}{}
		genes = append(genes, gene)

		for j, col := range sampleCols {
			v, err := cellFloat(row[col])
			if err != nil {
				return nil, fmt.Errorf("%s row %d, sample %s: %v", path, rowID, samples[j], err)
			}
			values[j] = append(values[j], v)
		}
	}

	return NewMatrix(genes, samples, values)
}

// readParquetStrings renders a Parquet table as string rows, header first, so
// it can be decoded by gocsv.
func readParquetStrings(path string) ([][]string, error) {
	columns, rows, err := readParquetTable(path)
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(rows)+1)
	out = append(out, columns)
	for _, row := range rows {
		strs := make([]string, len(row))
		for i, cell := range row {
			strs[i] = cellString(cell)
		}
		out = append(out, strs)
	}

	return out, nil
}

func cellString(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return v.Format(time.RFC3339)
	}

	return fmt.Sprint(cell)
}

func cellFloat(cell interface{}) (float64, error) {
	switch v := cell.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case string:
		if IsMissing(v) {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}

	return 0, fmt.Errorf("cannot interpret %T as a number", cell)
}
