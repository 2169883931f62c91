package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"procsight/domain/series"
	"procsight/internal/errors"
)

// exportTimeLayout is parseable by the ingestion side, so an exported table
// re-ingests onto the same timestamps.
const exportTimeLayout = "2006-01-02 15:04:05.999999999"

// WriteCSV writes the dataset as a time-indexed CSV table: header row
// "time,<columns...>", one row per timestamp, missing values as empty
// cells. The output round-trips through ingestion modulo float formatting.
func WriteCSV(w io.Writer, ds *series.Dataset) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(ds.Columns)+1)
	header = append(header, "time")
	for _, key := range ds.Columns {
		header = append(header, string(key))
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "csv export failed")
	}

	row := make([]string, len(header))
	for i, t := range ds.Index {
		row[0] = formatExportTime(t)
		for j, key := range ds.Columns {
			v := ds.Values[key][i]
			if series.IsMissing(v) {
				row[j+1] = ""
			} else {
				row[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "csv export failed")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "csv export failed")
}

func formatExportTime(t time.Time) string {
	return t.Format(exportTimeLayout)
}
