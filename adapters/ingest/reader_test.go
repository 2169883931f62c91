package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/testkit"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCSVBasics(t *testing.T) {
	path := writeFile(t, "plant.csv",
		"time,Temp,Flow\n"+
			"2024-03-01 12:00:00,21.5,100\n"+
			"2024-03-01 12:00:01,22.0,\n"+
			"2024-03-01 12:00:02,abc,102\n")

	table, err := NewDataReader(path).Read()
	require.NoError(t, err)

	assert.Equal(t, "plant", table.SourceID)
	assert.Equal(t, []string{"Temp", "Flow"}, table.Headers)
	require.Len(t, table.Times, 3)

	assert.Equal(t, 21.5, table.Columns["Temp"][0])
	assert.True(t, series.IsMissing(table.Columns["Flow"][1]), "blank cell is missing")
	assert.True(t, series.IsMissing(table.Columns["Temp"][2]), "non-numeric cell is missing")
	assert.Equal(t, 102.0, table.Columns["Flow"][2])
}

func TestReadRenamesDuplicateHeaders(t *testing.T) {
	path := writeFile(t, "twins.csv",
		"time,Temp,Temp,Temp\n"+
			"2024-03-01 12:00:00,1,100,7\n"+
			"2024-03-01 12:00:01,2,200,8\n"+
			"2024-03-01 12:00:02,3,300,9\n")

	table, err := NewDataReader(path).Read()
	require.NoError(t, err)

	assert.Equal(t, []string{"Temp", "Temp.1", "Temp.2"}, table.Headers)
	assert.Equal(t, []float64{1, 2, 3}, table.Columns["Temp"])
	assert.Equal(t, []float64{100, 200, 300}, table.Columns["Temp.1"])
	assert.Equal(t, []float64{7, 8, 9}, table.Columns["Temp.2"])
}

func TestReadSortsAndDeduplicatesTimestamps(t *testing.T) {
	path := writeFile(t, "messy.csv",
		"time,V\n"+
			"2024-03-01 12:00:02,3\n"+
			"2024-03-01 12:00:00,1\n"+
			"2024-03-01 12:00:00,9\n"+
			"2024-03-01 12:00:01,2\n")

	table, err := NewDataReader(path).Read()
	require.NoError(t, err)

	require.Len(t, table.Times, 3)
	assert.True(t, table.Times[0].Before(table.Times[1]))
	assert.True(t, table.Times[1].Before(table.Times[2]))
	assert.Equal(t, 1.0, table.Columns["V"][0], "first occurrence wins on duplicate timestamps")
}

func TestReadDropsUnparseableRows(t *testing.T) {
	path := writeFile(t, "partial.csv",
		"time,V\n"+
			"not-a-time,1\n"+
			"2024-03-01 12:00:00,2\n")

	table, err := NewDataReader(path).Read()
	require.NoError(t, err)
	require.Len(t, table.Times, 1)
	assert.Equal(t, 2.0, table.Columns["V"][0])
}

func TestReadAllTimestampsUnparseable(t *testing.T) {
	path := writeFile(t, "bad.csv",
		"time,V\nfoo,1\nbar,2\n")

	_, err := NewDataReader(path).Read()
	assert.ErrorIs(t, err, core.ErrTimeColumn)
}

func TestReadEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "time,V\n")

	_, err := NewDataReader(path).Read()
	assert.ErrorIs(t, err, core.ErrEmptyFile)
}

func TestReadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "data.parquet", "xx")

	_, err := NewDataReader(path).Read()
	assert.ErrorIs(t, err, core.ErrUnsupportedFile)
}

func TestReadExcelWorkbook(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC),
	}
	path, err := testkit.WriteXLSXFile(t.TempDir(), "plant.xlsx", times,
		map[string][]float64{"Temp": {21.5, 22.0}}, []string{"Temp"})
	require.NoError(t, err)

	table, rerr := NewDataReader(path).Read()
	require.NoError(t, rerr)

	assert.Equal(t, "plant", table.SourceID)
	require.Len(t, table.Times, 2)
	assert.Equal(t, 21.5, table.Columns["Temp"][0])
	assert.Equal(t, 22.0, table.Columns["Temp"][1])
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01 12:00:00":       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		"2024-03-01T12:00:00Z":      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		"2024-03-01T14:00:00+02:00": time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		"2024-03-01":                time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %v", in, got)
	}

	_, err := ParseTimestamp("garbage")
	assert.Error(t, err)
}
