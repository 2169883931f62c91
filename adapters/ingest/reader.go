package ingest

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"procsight/domain/core"
	"procsight/domain/series"

	"github.com/xuri/excelize/v2"
)

// RawTable is one parsed source file: a time axis plus named data columns,
// before prefixing and merging. Column values hold the Missing marker where
// a cell was blank or non-numeric.
type RawTable struct {
	SourceID string // file base name without extension
	Headers  []string
	Times    []time.Time
	Columns  map[string][]float64
}

// RowCount returns the number of parsed data rows.
func (t *RawTable) RowCount() int { return len(t.Times) }

// DataReader handles reading CSV and Excel source files. The first column is
// always the time column; remaining columns are numeric series.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := strings.TrimPrefix(ext, ".")
	switch ext {
	case ".csv":
		fileType = "csv"
	case ".xlsx", ".xls", ".xlsm":
		fileType = "xlsx"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// Read parses the file into a RawTable. A file whose time column never
// parses is an ingestion error for that file only; the caller skips it and
// continues with other sources.
func (r *DataReader) Read() (*RawTable, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFile, r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyFile, r.filePath)
	}

	return r.processRows(rows)
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	log.Printf("[Ingest] CSV file read (%d rows): %s", len(rows), r.filePath)
	return rows, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	// First sheet, whatever it is named.
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrEmptyFile)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	log.Printf("[Ingest] Excel sheet %s read (%d rows): %s", sheets[0], len(rows), r.filePath)
	return rows, nil
}

// processRows converts raw string rows into a RawTable. Rows whose timestamp
// fails to parse are dropped; if every row fails, the whole file is rejected
// with ErrTimeColumn.
func (r *DataReader) processRows(rows [][]string) (*RawTable, error) {
	headerRow := rows[0]
	if len(headerRow) < 1 {
		return nil, fmt.Errorf("%w: header row is empty", core.ErrEmptyFile)
	}

	// Duplicate header names get a numeric suffix (X, X.1, X.2) so each
	// physical column keeps its own values.
	headers := make([]string, 0, len(headerRow)-1)
	seen := make(map[string]int, len(headerRow)-1)
	for _, header := range headerRow[1:] {
		name := strings.TrimSpace(header)
		if n, ok := seen[name]; ok && name != "" {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		}
		if _, ok := seen[name]; !ok {
			seen[name] = 1
		}
		headers = append(headers, name)
	}

	sourceID := strings.TrimSuffix(filepath.Base(r.filePath), filepath.Ext(r.filePath))

	table := &RawTable{
		SourceID: sourceID,
		Headers:  headers,
		Columns:  make(map[string][]float64, len(headers)),
	}

	parsedAny := false
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 {
			continue
		}
		ts, err := ParseTimestamp(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		parsedAny = true
		table.Times = append(table.Times, ts)
		for j, name := range headers {
			cell := ""
			if j+1 < len(row) {
				cell = strings.TrimSpace(row[j+1])
			}
			table.Columns[name] = append(table.Columns[name], parseCell(cell))
		}
	}

	if !parsedAny {
		return nil, fmt.Errorf("%w: %s (column %q)", core.ErrTimeColumn, r.filePath, headerRow[0])
	}

	sortByTime(table)
	dedupeTimestamps(table)

	log.Printf("[Ingest] %s parsed (%d columns, %d rows)", sourceID, len(headers), table.RowCount())
	return table, nil
}

// parseCell converts one data cell to a float, or the Missing marker for
// blank and non-numeric values.
func parseCell(cell string) float64 {
	if cell == "" {
		return series.Missing
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return series.Missing
	}
	return v
}

// sortByTime orders all rows by ascending timestamp (stable, so file order
// breaks ties before deduplication).
func sortByTime(t *RawTable) {
	idx := make([]int, len(t.Times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return t.Times[idx[a]].Before(t.Times[idx[b]]) })

	times := make([]time.Time, len(idx))
	for i, j := range idx {
		times[i] = t.Times[j]
	}
	t.Times = times
	for name, col := range t.Columns {
		sorted := make([]float64, len(idx))
		for i, j := range idx {
			sorted[i] = col[j]
		}
		t.Columns[name] = sorted
	}
}

// dedupeTimestamps keeps the first row for each timestamp so the series
// invariant (strictly increasing) holds.
func dedupeTimestamps(t *RawTable) {
	if len(t.Times) < 2 {
		return
	}
	keep := make([]int, 0, len(t.Times))
	for i := range t.Times {
		if i > 0 && t.Times[i].Equal(t.Times[i-1]) {
			continue
		}
		keep = append(keep, i)
	}
	if len(keep) == len(t.Times) {
		return
	}
	times := make([]time.Time, len(keep))
	for i, j := range keep {
		times[i] = t.Times[j]
	}
	t.Times = times
	for name, col := range t.Columns {
		kept := make([]float64, len(keep))
		for i, j := range keep {
			kept[i] = col[j]
		}
		t.Columns[name] = kept
	}
}
